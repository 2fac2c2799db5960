// Package validation implements the per-field rules of the contact form.
//
// Rules are declared in a form schema (see form.yaml). A field is checked the
// same way on every input event and on blur/submit; the only difference is
// that an empty required field is reported only when showError is set.
package validation

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Field types understood by the validator.
const (
	TypeText     = "text"
	TypeTextarea = "textarea"
	TypeEmail    = "email"
	TypeTel      = "tel"
	TypeSelect   = "select"
	TypeCheckbox = "checkbox"
)

// Messages shown next to a failing field.
const (
	MsgRequired     = "This field is required"
	MsgInvalidEmail = "Please enter a valid email address"
	MsgInvalidPhone = "Please enter a valid phone number"
	MsgInvalidEnum  = "Please choose a valid option"
)

const minPhoneDigits = 10

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

//go:embed form.yaml
var defaultSchema []byte

// Rule declares the constraints of one form field.
type Rule struct {
	Name      string   `yaml:"name"`
	Type      string   `yaml:"type"`
	Required  bool     `yaml:"required"`
	MinLength int      `yaml:"minlength"`
	MaxLength int      `yaml:"maxlength"`
	Options   []string `yaml:"options"`
}

// Schema is an ordered set of field rules.
type Schema struct {
	Fields []Rule `yaml:"fields"`
}

// DefaultSchema returns the embedded contact form schema.
func DefaultSchema() *Schema {
	s, err := ParseSchema(defaultSchema)
	if err != nil {
		panic("validation: embedded form schema: " + err.Error())
	}
	return s
}

// LoadSchema reads a schema file; an empty path yields the default schema.
func LoadSchema(path string) (*Schema, error) {
	if path == "" {
		return DefaultSchema(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read form schema: %w", err)
	}
	return ParseSchema(data)
}

// ParseSchema decodes a YAML schema and checks it for obvious mistakes.
func ParseSchema(data []byte) (*Schema, error) {
	var s Schema
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("parse form schema: %w", err)
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		if f.Name == "" {
			return nil, fmt.Errorf("form schema: field %d has no name", i)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("form schema: duplicate field %q", f.Name)
		}
		seen[f.Name] = true
		if f.MinLength > 0 && f.MaxLength > 0 && f.MinLength > f.MaxLength {
			return nil, fmt.Errorf("form schema: field %q has minlength > maxlength", f.Name)
		}
		if f.Type == "" {
			s.Fields[i].Type = TypeText
		}
	}
	return &s, nil
}

// Rule returns the rule for a field name.
func (s *Schema) Rule(name string) (Rule, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Rule{}, false
}

// Check validates one value against r. It returns "" when the value passes.
// When several checks fail the last one wins, so a too-short malformed email
// reports the length problem.
func (r Rule) Check(value string, showError bool) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		if r.Required && showError {
			return MsgRequired
		}
		return ""
	}

	msg := ""
	switch r.Type {
	case TypeEmail:
		if !emailPattern.MatchString(value) {
			msg = MsgInvalidEmail
		}
	case TypeTel:
		if countDigits(value) < minPhoneDigits {
			msg = MsgInvalidPhone
		}
	case TypeSelect:
		if len(r.Options) > 0 && !contains(r.Options, trimmed) {
			msg = MsgInvalidEnum
		}
	}

	n := utf8.RuneCountInString(trimmed)
	if r.MinLength > 0 && n < r.MinLength {
		msg = fmt.Sprintf("Minimum %d characters required", r.MinLength)
	}
	if r.MaxLength > 0 && n > r.MaxLength {
		msg = fmt.Sprintf("Maximum %d characters allowed", r.MaxLength)
	}
	return msg
}

// Field validates a single named field. Unknown fields always pass.
func (s *Schema) Field(name, value string, showError bool) string {
	r, ok := s.Rule(name)
	if !ok {
		return ""
	}
	return r.Check(value, showError)
}

// Validate checks every schema field the way a submit does and returns nil
// when all pass. Missing values count as empty.
func (s *Schema) Validate(values map[string]string) *Errors {
	var errs *Errors
	for _, f := range s.Fields {
		if msg := f.Check(values[f.Name], true); msg != "" {
			if errs == nil {
				errs = &Errors{Fields: make(map[string]string)}
			}
			errs.Fields[f.Name] = msg
		}
	}
	return errs
}

// Errors maps failing field names to the message shown next to the field.
type Errors struct {
	Fields map[string]string
}

func (e *Errors) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
