package env

import "os"

// Get reads one process environment value, falling back when it is unset or
// blank. Structured settings live in pkg/config under the TIENDA_ prefix;
// this covers the handful of unprefixed values the platform injects, such as
// PORT.
func Get(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}
