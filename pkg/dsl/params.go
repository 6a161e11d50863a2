package dsl

import "strings"

// ParseCallParams parses CALL_FLOW call-site parameters of the form
// "user=admin;pass=secret". Items without '=' are ignored.
func ParseCallParams(data string) map[string]string {
	params := make(map[string]string)
	for _, item := range strings.Split(data, ";") {
		key, value, ok := strings.Cut(item, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		params[key] = strings.TrimSpace(value)
	}
	return params
}
