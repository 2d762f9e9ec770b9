package config

import (
	"os"
	"regexp"
)

// placeholderPattern matches ${VAR} and ${VAR:-default}.
var placeholderPattern = regexp.MustCompile(`\$\{(\w+)(:-([^}]*))?\}`)

// ExpandPlaceholders substitutes ${VAR} and ${VAR:-default} references in the
// raw YAML against the process environment. An unset variable without a
// default expands to the empty string.
func ExpandPlaceholders(raw []byte) []byte {
	return placeholderPattern.ReplaceAllFunc(raw, func(m []byte) []byte {
		groups := placeholderPattern.FindSubmatch(m)
		name := string(groups[1])
		if v, ok := os.LookupEnv(name); ok {
			return []byte(v)
		}
		if len(groups[2]) > 0 {
			return groups[3]
		}
		return nil
	})
}
