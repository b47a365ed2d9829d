package shell

import (
	"os"
	"regexp"
	"strings"
)

var envRe = regexp.MustCompile(`\${([^}{]+)}`)

// ReplaceEnvVars expands ${VAR} references in config text. A fallback can
// follow a colon: ${VAR:default}. References to unset variables without a
// fallback stay as they are.
func ReplaceEnvVars(text string) string {
	return envRe.ReplaceAllStringFunc(text, func(match string) string {
		key := match[2 : len(match)-1]

		var fallback string
		var hasFallback bool

		// split on the first colon, but not a leading one
		if i := strings.IndexByte(key, ':'); i > 0 {
			key, fallback = key[:i], key[i+1:]
			hasFallback = true
		}

		if value, ok := os.LookupEnv(key); ok {
			return value
		}
		if hasFallback {
			return fallback
		}
		return match
	})
}
