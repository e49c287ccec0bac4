package templates

import (
	"fmt"
	"os"
	"strings"
)

// Template is a batch script body with $-style placeholders.
//
// Recognised forms are ${name} and $name, where name matches
// [_A-Za-z][_A-Za-z0-9]*, and $$ which renders as a single $.
// Substitution never fails: a placeholder with no value in the mapping is
// emitted exactly as written, and a $ that does not start a valid form is kept
// literally. Substituted values are not scanned again.
type Template struct {
	name     string
	source   string
	segments []segment
}

type segment struct {
	literal string
	name    string // non-empty for placeholders
	raw     string // placeholder text as written
}

// Parse scans body into literal and placeholder segments. Parsing cannot fail.
func Parse(name, body string) *Template {
	t := &Template{name: name, source: body}

	var lit strings.Builder
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(body); {
		if body[i] != '$' || i+1 >= len(body) {
			lit.WriteByte(body[i])
			i++
			continue
		}

		next := body[i+1]
		switch {
		case next == '$':
			lit.WriteByte('$')
			i += 2
		case next == '{':
			end := identEnd(body, i+2)
			if end > i+2 && end < len(body) && body[end] == '}' {
				flush()
				t.segments = append(t.segments, segment{name: body[i+2 : end], raw: body[i : end+1]})
				i = end + 1
			} else {
				lit.WriteByte('$')
				i++
			}
		case isIdentStart(next):
			end := identEnd(body, i+1)
			flush()
			t.segments = append(t.segments, segment{name: body[i+1 : end], raw: body[i:end]})
			i = end
		default:
			lit.WriteByte('$')
			i++
		}
	}
	flush()

	return t
}

// Load reads a previously written template file.
func Load(path string) (*Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read template %s: %w", path, err)
	}
	return Parse(path, string(data)), nil
}

func (t *Template) Name() string {
	return t.name
}

// Render substitutes values into the template.
func (t *Template) Render(values map[string]string) string {
	var b strings.Builder
	for _, s := range t.segments {
		if s.name == "" {
			b.WriteString(s.literal)
			continue
		}
		if v, ok := values[s.name]; ok {
			b.WriteString(v)
		} else {
			b.WriteString(s.raw)
		}
	}
	return b.String()
}

// Source returns the template text as parsed.
func (t *Template) Source() string {
	return t.source
}

// Placeholders lists the distinct placeholder names in order of first use.
func (t *Template) Placeholders() []string {
	seen := make(map[string]bool)
	var names []string
	for _, s := range t.segments {
		if s.name != "" && !seen[s.name] {
			seen[s.name] = true
			names = append(names, s.name)
		}
	}
	return names
}

// Missing lists placeholders that values does not resolve.
func (t *Template) Missing(values map[string]string) []string {
	var missing []string
	for _, name := range t.Placeholders() {
		if _, ok := values[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// WriteFile renders the template and writes the result to path as an
// executable script.
func (t *Template) WriteFile(path string, values map[string]string) error {
	if err := os.WriteFile(path, []byte(t.Render(values)), 0755); err != nil {
		return fmt.Errorf("failed to write script %s: %w", path, err)
	}
	return nil
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func identEnd(s string, start int) int {
	i := start
	if i >= len(s) || !isIdentStart(s[i]) {
		return start
	}
	for i < len(s) && (isIdentStart(s[i]) || (s[i] >= '0' && s[i] <= '9')) {
		i++
	}
	return i
}

// Save writes the unrendered template text to path.
func (t *Template) Save(path string) error {
	if err := os.WriteFile(path, []byte(t.source), 0644); err != nil {
		return fmt.Errorf("failed to write template %s: %w", path, err)
	}
	return nil
}
