package bco

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var refPattern = regexp.MustCompile(`\\ref\{([^}]*)\}`)

// Citations numbers every \ref{key} marker in text by first appearance and
// appends a reference list. A key cited twice keeps its first number.
func Citations(text string) (string, error) {
	var (
		keys    []string
		numbers = map[string]int{}
		bad     error
	)

	out := refPattern.ReplaceAllStringFunc(text, func(m string) string {
		key := strings.TrimSpace(refPattern.FindStringSubmatch(m)[1])
		if key == "" {
			if bad == nil {
				bad = fmt.Errorf("empty citation key in %q", m)
			}
			return m
		}
		n, ok := numbers[key]
		if !ok {
			keys = append(keys, key)
			n = len(keys)
			numbers[key] = n
		}
		return "[" + strconv.Itoa(n) + "]"
	})
	if bad != nil {
		return "", bad
	}
	if len(keys) == 0 {
		return out, nil
	}

	var b strings.Builder
	b.WriteString(out)
	b.WriteString("\n\n")
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, key)
	}
	return b.String(), nil
}
