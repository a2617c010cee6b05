package logger

import "strings"

// secretKeys are field names whose values are masked in log output.
var secretKeys = []string{"token", "secret", "authorization", "bearer"}

// RedactToken masks a credential for safe logging, keeping a short prefix
// so related log lines can still be correlated.
// "a1b2c3d4e5f6aa" → "a1b2***"
func RedactToken(token string) string {
	if len(token) <= 4 {
		return "***"
	}
	return token[:4] + "***"
}

func redactSecretValue(key, val string) string {
	key = strings.ToLower(key)
	for _, s := range secretKeys {
		if strings.Contains(key, s) {
			return RedactToken(val)
		}
	}
	return val
}
