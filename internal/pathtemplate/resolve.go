package pathtemplate

import (
	"fmt"
	"strings"
)

type MalformedTemplateError struct {
	Template string
	Offset   int
	Reason   string
}

func (e *MalformedTemplateError) Error() string {
	return fmt.Sprintf("malformed template %q at offset %d: %s", e.Template, e.Offset, e.Reason)
}

type UnresolvedVariableError struct {
	Names []string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved template variables: %s", strings.Join(e.Names, ", "))
}

type segment struct {
	literal  string
	variable string
}

// Resolve substitutes every {{name}} in template with vars[name]. The
// template is parsed completely before anything is substituted, so a
// malformed template never yields a partially resolved string. Missing or
// empty values are reported together in one UnresolvedVariableError.
func Resolve(template string, vars map[string]string) (string, error) {
	segments, err := parse(template)
	if err != nil {
		return "", err
	}

	var missing []string
	seen := make(map[string]bool)
	var b strings.Builder
	b.Grow(len(template))

	for _, seg := range segments {
		if seg.variable == "" {
			b.WriteString(seg.literal)
			continue
		}
		value, ok := vars[seg.variable]
		if !ok || value == "" {
			if !seen[seg.variable] {
				seen[seg.variable] = true
				missing = append(missing, seg.variable)
			}
			continue
		}
		b.WriteString(value)
	}

	if len(missing) > 0 {
		return "", &UnresolvedVariableError{Names: missing}
	}
	return b.String(), nil
}

// Variables lists the distinct placeholder names in order of first use.
func Variables(template string) ([]string, error) {
	segments, err := parse(template)
	if err != nil {
		return nil, err
	}

	var names []string
	seen := make(map[string]bool)
	for _, seg := range segments {
		if seg.variable != "" && !seen[seg.variable] {
			seen[seg.variable] = true
			names = append(names, seg.variable)
		}
	}
	return names, nil
}

func parse(template string) ([]segment, error) {
	var segments []segment
	rest := template
	offset := 0

	for len(rest) > 0 {
		open := strings.Index(rest, "{{")
		closing := strings.Index(rest, "}}")

		if open < 0 {
			if closing >= 0 {
				return nil, malformed(template, offset+closing, "closing braces without opening braces")
			}
			segments = append(segments, segment{literal: rest})
			break
		}
		if closing >= 0 && closing < open {
			return nil, malformed(template, offset+closing, "closing braces without opening braces")
		}

		if open > 0 {
			segments = append(segments, segment{literal: rest[:open]})
		}

		body := rest[open+2:]
		end := strings.Index(body, "}}")
		if end < 0 {
			return nil, malformed(template, offset+open, "unterminated placeholder")
		}
		if nested := strings.Index(body[:end], "{{"); nested >= 0 {
			return nil, malformed(template, offset+open+2+nested, "nested placeholder")
		}

		name := strings.TrimSpace(body[:end])
		if name == "" {
			return nil, malformed(template, offset+open, "empty placeholder name")
		}
		if !validName(name) {
			return nil, malformed(template, offset+open, fmt.Sprintf("invalid placeholder name %q", name))
		}
		segments = append(segments, segment{variable: name})

		consumed := open + 2 + end + 2
		rest = rest[consumed:]
		offset += consumed
	}

	return segments, nil
}

func validName(name string) bool {
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

func malformed(template string, offset int, reason string) error {
	return &MalformedTemplateError{Template: template, Offset: offset, Reason: reason}
}
