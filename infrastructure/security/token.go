package security

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingSecret  = errors.New("jwt secret is not configured")
	ErrMissingSubject = errors.New("token has no subject")
)

// Claims are the fields read from identity provider tokens. The user id is
// the standard "sub" claim.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens issued by the identity provider.
type TokenVerifier struct {
	secret   []byte
	issuer   string
	audience string
}

func NewTokenVerifier(secret, issuer, audience string) *TokenVerifier {
	return &TokenVerifier{
		secret:   []byte(secret),
		issuer:   issuer,
		audience: audience,
	}
}

// Verify validates the token and returns the user id it was issued to.
func (v *TokenVerifier) Verify(tokenStr string) (string, *Claims, error) {
	if len(v.secret) == 0 {
		return "", nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return "", nil, err
	}
	if !token.Valid {
		return "", nil, jwt.ErrTokenInvalidClaims
	}
	if claims.Subject == "" {
		return "", nil, ErrMissingSubject
	}

	return claims.Subject, claims, nil
}

// Sign issues a token for userID. It is used by tests and local tooling; in
// production tokens come from the identity provider.
func (v *TokenVerifier) Sign(userID string, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}

	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
