package env

import (
	"os"
	"strings"
)

// Prefix namespaces every phoneshop variable.
const Prefix = "PHONESHOP_"

// Get looks up PHONESHOP_<key> first, then the bare key, then the fallback.
// Blank values count as unset.
func Get(key, fallback string) string {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" {
		return fallback
	}
	if !strings.HasPrefix(key, Prefix) {
		if val := strings.TrimSpace(os.Getenv(Prefix + key)); val != "" {
			return val
		}
	}
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return fallback
}

// Bool reports whether the variable is set to a truthy value.
func Bool(key string, fallback bool) bool {
	switch strings.ToLower(Get(key, "")) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
