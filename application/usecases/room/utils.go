package room

import (
	"crypto/rand"
	"fmt"
)

const codeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeGenerator returns a candidate room code. Uniqueness is left to the store.
type CodeGenerator func() (string, error)

// generateJoinCode draws each character uniformly from codeCharset using
// crypto/rand, discarding bytes that would bias the distribution.
func generateJoinCode() (string, error) {
	const codeLength = 6
	// largest multiple of len(codeCharset) that fits in a byte
	const limit = 256 - 256%len(codeCharset)

	code := make([]byte, 0, codeLength)
	buf := make([]byte, codeLength*2)
	for len(code) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= limit {
				continue
			}
			code = append(code, codeCharset[int(b)%len(codeCharset)])
			if len(code) == codeLength {
				break
			}
		}
	}

	return string(code), nil
}
