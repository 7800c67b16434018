package common

import (
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ToCamelCase converts a snake_case key into camelCase.
// The first segment is kept as is; every following segment gets its first
// character uppercased and the rest left untouched.
func ToCamelCase(key string) string {
	parts := strings.Split(key, "_")
	if len(parts) == 1 {
		return key
	}

	var b strings.Builder
	b.Grow(len(key))
	b.WriteString(parts[0])
	for _, part := range parts[1:] {
		if part == "" {
			continue
		}
		r, size := utf8.DecodeRuneInString(part)
		b.WriteRune(unicode.ToUpper(r))
		b.WriteString(part[size:])
	}
	return b.String()
}

// MapToCamelCase returns a copy of data with every key converted by ToCamelCase.
// Nested maps are converted recursively, as are maps found directly inside
// slices. Other slice elements (scalars, nested slices) are copied unchanged.
// The input is never mutated.
//
// When several keys convert to the same name, a key that is already in
// camelCase wins; otherwise the lexically greatest source key wins.
func MapToCamelCase(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}

	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, func(a, b string) int {
		aSame, bSame := ToCamelCase(a) == a, ToCamelCase(b) == b
		switch {
		case aSame == bSame:
			return strings.Compare(a, b)
		case aSame:
			return 1
		default:
			return -1
		}
	})

	converted := make(map[string]any, len(data))
	for _, k := range keys {
		converted[ToCamelCase(k)] = convertValue(data[k])
	}
	return converted
}

func convertValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return MapToCamelCase(val)
	case []any:
		items := make([]any, len(val))
		for i, item := range val {
			if m, ok := item.(map[string]any); ok {
				items[i] = MapToCamelCase(m)
				continue
			}
			items[i] = item
		}
		return items
	default:
		return v
	}
}
