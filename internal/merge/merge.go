// Package merge fills message templates with per-row field values.
//
// Placeholders are written as {key}. Literal braces are written doubled: {{ and }}.
// The key is the full text between the braces and must match a column name exactly.
// Rendering never fails: when a placeholder cannot be satisfied the original
// template is returned unchanged and the caller is told a fallback was used.
package merge

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mailblast/mailblast/internal/model"
)

var (
	// ErrUnclosedPlaceholder is returned for a { without a matching }.
	ErrUnclosedPlaceholder = errors.New("merge: unclosed placeholder")
	// ErrUnmatchedBrace is returned for a single } outside a placeholder.
	ErrUnmatchedBrace = errors.New("merge: single '}' encountered")
	// ErrEmptyPlaceholder is returned for {}.
	ErrEmptyPlaceholder = errors.New("merge: empty placeholder")
	// ErrMissingField is returned when the row has no value for a placeholder key.
	ErrMissingField = errors.New("merge: missing field")
)

// Result is the outcome of a render.
type Result struct {
	Text     string
	Fallback bool
	// Err is the substitution error that caused the fallback, if any.
	Err error
}

// Render substitutes every {key} in tmpl with the row's display value.
// If any substitution fails the template is returned verbatim with Fallback set.
func Render(tmpl string, row model.Row) Result {
	out, err := Execute(tmpl, row)
	if err != nil {
		return Result{Text: tmpl, Fallback: true, Err: err}
	}
	return Result{Text: out}
}

// Execute substitutes placeholders and reports the first error instead of falling back.
func Execute(tmpl string, row model.Row) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl))

	err := scan(tmpl, func(literal string) {
		b.WriteString(literal)
	}, func(key string) error {
		v, ok := row[key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingField, key)
		}
		b.WriteString(Display(v))
		return nil
	})
	if err != nil {
		return "", err
	}
	return b.String(), nil
}

// Placeholders returns the distinct placeholder keys of tmpl in order of first appearance.
func Placeholders(tmpl string) ([]string, error) {
	var keys []string
	seen := make(map[string]struct{})
	err := scan(tmpl, func(string) {}, func(key string) error {
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return keys, nil
}

// Missing returns the placeholder keys of tmpl that row does not provide.
func Missing(tmpl string, row model.Row) ([]string, error) {
	keys, err := Placeholders(tmpl)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, k := range keys {
		if _, ok := row[k]; !ok {
			missing = append(missing, k)
		}
	}
	return missing, nil
}

// Display converts a cell value to the string that is substituted into a template.
func Display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

func scan(tmpl string, literal func(string), field func(string) error) error {
	start := 0
	for i := 0; i < len(tmpl); i++ {
		switch tmpl[i] {
		case '{':
			literal(tmpl[start:i])
			if i+1 < len(tmpl) && tmpl[i+1] == '{' {
				literal("{")
				i++
				start = i + 1
				continue
			}
			end := strings.IndexAny(tmpl[i+1:], "{}")
			if end < 0 || tmpl[i+1+end] != '}' {
				return ErrUnclosedPlaceholder
			}
			key := tmpl[i+1 : i+1+end]
			if key == "" {
				return ErrEmptyPlaceholder
			}
			if err := field(key); err != nil {
				return err
			}
			i += end + 1
			start = i + 1
		case '}':
			literal(tmpl[start:i])
			if i+1 < len(tmpl) && tmpl[i+1] == '}' {
				literal("}")
				i++
				start = i + 1
				continue
			}
			return ErrUnmatchedBrace
		}
	}
	literal(tmpl[start:])
	return nil
}
