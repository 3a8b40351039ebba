package pkg

import (
	"strings"
	"time"
	"unicode"
)

// ToCamel converts snake_case, kebab-case, or space separated words to camelCase.
// Characters that follow a separator are upper-cased; everything else keeps its
// case apart from the first rune, so an already camelCase name is unchanged.
func ToCamel(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	upperNext := false
	first := true
	for _, r := range s {
		if isSeparator(r) {
			upperNext = !first
			continue
		}
		switch {
		case first:
			b.WriteRune(unicode.ToLower(r))
			first = false
		case upperNext:
			b.WriteRune(unicode.ToUpper(r))
		default:
			b.WriteRune(r)
		}
		upperNext = false
	}
	return b.String()
}

// ToPascal converts s to PascalCase.
func ToPascal(s string) string {
	c := ToCamel(s)
	if c == "" {
		return c
	}
	runes := []rune(c)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}

// ToSnake converts camelCase, PascalCase, kebab-case, or space separated words
// to snake_case. Acronyms stay together: "userID" becomes "user_id".
func ToSnake(s string) string {
	return delimit(s, '_')
}

// ToKebab converts s to kebab-case.
func ToKebab(s string) string {
	return delimit(s, '-')
}

func delimit(s string, sep rune) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 4)
	for i, r := range runes {
		if isSeparator(r) {
			if b.Len() > 0 && !strings.HasSuffix(b.String(), string(sep)) {
				b.WriteRune(sep)
			}
			continue
		}
		if unicode.IsUpper(r) && i > 0 && b.Len() > 0 && !strings.HasSuffix(b.String(), string(sep)) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteRune(sep)
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return strings.TrimSuffix(b.String(), string(sep))
}

func isSeparator(r rune) bool {
	return r == '_' || r == '-' || unicode.IsSpace(r)
}

// CamelizeKeys returns a copy of v with every map key converted to camelCase.
// It recurses into nested maps and slices; time.Time and other leaf values are
// returned unchanged.
func CamelizeKeys(v any) any {
	return mapKeys(v, ToCamel)
}

func mapKeys(v any, conv func(string) string) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[conv(k)] = mapKeys(val, conv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = mapKeys(val, conv)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(t))
		for i, val := range t {
			out[i] = mapKeys(val, conv).(map[string]any)
		}
		return out
	case time.Time, *time.Time:
		return t
	default:
		return v
	}
}
