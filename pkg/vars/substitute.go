// Package vars implements the layered variable scope and ${VAR} / {{var}}
// placeholder substitution.
package vars

import (
	"os"
	"regexp"
	"strings"

	"github.com/edgeqa/edgeqa-runner/pkg/core"
)

// EnvPrefix marks process environment variables imported into the global layer.
const EnvPrefix = "EDGEQA_VAR_"

// tokenPattern matches ${NAME} and {{ name }}.
var tokenPattern = regexp.MustCompile(`\$\{([^{}]+)\}|\{\{\s*([^{}]+?)\s*\}\}`)

// Lookup resolves a variable name.
type Lookup interface {
	Lookup(name string) (string, bool)
}

// Map is a single-layer Lookup.
type Map map[string]string

// Lookup implements Lookup.
func (m Map) Lookup(name string) (string, bool) {
	v, ok := m[name]
	return v, ok
}

// Substitute replaces every placeholder in field with its value from l.
// Replacement text is never scanned again. The first unbound placeholder
// fails with core.ErrUndefinedVariable.
func Substitute(field string, l Lookup) (string, error) {
	matches := tokenPattern.FindAllStringSubmatchIndex(field, -1)
	if len(matches) == 0 {
		return field, nil
	}

	var b strings.Builder
	last := 0
	for _, m := range matches {
		var name string
		if m[2] >= 0 {
			name = strings.TrimSpace(field[m[2]:m[3]])
		} else {
			name = field[m[4]:m[5]]
		}
		value, ok := l.Lookup(name)
		if !ok {
			return "", core.ErrUndefinedVariable.
				WithMessagef("undefined variable: %s", name).
				WithDetails(map[string]interface{}{"variable": name})
		}
		b.WriteString(field[last:m[0]])
		b.WriteString(value)
		last = m[1]
	}
	b.WriteString(field[last:])
	return b.String(), nil
}

// Names returns the placeholder names referenced by field, in order.
func Names(field string) []string {
	var names []string
	for _, m := range tokenPattern.FindAllStringSubmatch(field, -1) {
		if m[1] != "" {
			names = append(names, strings.TrimSpace(m[1]))
		} else {
			names = append(names, m[2])
		}
	}
	return names
}

// ImportEnv collects NAME=value pairs from environ whose key carries prefix,
// with the prefix stripped.
func ImportEnv(prefix string, environ []string) map[string]string {
	out := make(map[string]string)
	for _, env := range environ {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, prefix) {
			continue
		}
		name := strings.TrimPrefix(key, prefix)
		if name == "" {
			continue
		}
		out[name] = value
	}
	return out
}

// ImportProcessEnv is ImportEnv over os.Environ with EnvPrefix.
func ImportProcessEnv() map[string]string {
	return ImportEnv(EnvPrefix, os.Environ())
}
