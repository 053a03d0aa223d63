package dom

import "strings"

// Decl is a single style declaration.
type Decl struct {
	Property string
	Value    string
	Priority string // "important" or ""
}

// ComputedStyle is an ordered set of resolved style declarations. Order is
// preserved so serialisation is deterministic: embedding an already
// embedded tree must produce byte-identical output.
type ComputedStyle struct {
	// CSSText, when non-empty, is a full serialised declaration block and
	// takes precedence over the individual declarations on decoration.
	CSSText string

	// TransformOrigin accompanies CSSText; it does not survive css-text
	// round trips in every engine so it is carried separately.
	TransformOrigin string

	decls []Decl
	index map[string]int
}

// Set adds or replaces a declaration, keeping first-set order.
func (s *ComputedStyle) Set(property, value, priority string) {
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if i, ok := s.index[property]; ok {
		s.decls[i].Value = value
		s.decls[i].Priority = priority
		return
	}
	s.index[property] = len(s.decls)
	s.decls = append(s.decls, Decl{Property: property, Value: value, Priority: priority})
}

// Get returns the declaration for a property.
func (s *ComputedStyle) Get(property string) (Decl, bool) {
	if s == nil || s.index == nil {
		return Decl{}, false
	}
	i, ok := s.index[property]
	if !ok {
		return Decl{}, false
	}
	return s.decls[i], true
}

// Value returns the value for a property, or "".
func (s *ComputedStyle) Value(property string) string {
	d, _ := s.Get(property)
	return d.Value
}

// Decls returns the declarations in insertion order.
func (s *ComputedStyle) Decls() []Decl {
	if s == nil {
		return nil
	}
	return s.decls
}

// Len returns the number of declarations.
func (s *ComputedStyle) Len() int {
	if s == nil {
		return 0
	}
	return len(s.decls)
}

// Text serialises the declarations as an inline style attribute value.
func (s *ComputedStyle) Text() string {
	if s == nil || len(s.decls) == 0 {
		return ""
	}
	var sb strings.Builder
	for i, d := range s.decls {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(d.Property)
		sb.WriteString(": ")
		sb.WriteString(d.Value)
		if d.Priority != "" {
			sb.WriteString(" !")
			sb.WriteString(d.Priority)
		}
	}
	return sb.String()
}

// Clone returns an independent copy.
func (s *ComputedStyle) Clone() *ComputedStyle {
	if s == nil {
		return nil
	}
	c := &ComputedStyle{CSSText: s.CSSText, TransformOrigin: s.TransformOrigin}
	for _, d := range s.decls {
		c.Set(d.Property, d.Value, d.Priority)
	}
	return c
}
