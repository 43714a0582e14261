package middlewares

import "time"

// StrictRateLimiterConfig for room creation and join requests
func StrictRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "strict",
		RequestsPerWindow: 10,
		Window:            time.Minute,
		BlockDuration:     time.Minute * 5,
	}
}

// ModerateRateLimiterConfig for host decisions and other writes
func ModerateRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "moderate",
		RequestsPerWindow: 60,
		Window:            time.Minute,
		BlockDuration:     time.Minute * 2,
	}
}

// LenientRateLimiterConfig for reads and websocket handshakes
func LenientRateLimiterConfig() RateLimiterConfig {
	return RateLimiterConfig{
		Name:              "lenient",
		RequestsPerWindow: 200,
		Window:            time.Minute,
		BlockDuration:     time.Minute,
	}
}
