package check

import "strings"

// Ref identifies the object a job checks, or the object a message is about.
//
// Primary must be resolvable by the active document backend. Alternates are
// other spellings of the same logical object, kept for interoperability and
// tried in order when the primary form is not recognised. Two refs are never
// compared across representations: resolution decides identity.
type Ref struct {
	Primary    string   `json:"primary" yaml:"primary"`
	Alternates []string `json:"alternates,omitempty" yaml:"alternates,omitempty"`
}

// NewRef builds a Ref from a primary representation and optional alternates.
func NewRef(primary string, alternates ...string) Ref {
	r := Ref{Primary: primary}
	if len(alternates) > 0 {
		r.Alternates = append([]string(nil), alternates...)
	}
	return r
}

// Forms returns the primary representation followed by every alternate.
// Empty strings are skipped.
func (r Ref) Forms() []string {
	forms := make([]string, 0, 1+len(r.Alternates))
	if r.Primary != "" {
		forms = append(forms, r.Primary)
	}
	for _, alt := range r.Alternates {
		if alt != "" {
			forms = append(forms, alt)
		}
	}
	return forms
}

// IsZero reports whether the ref has no usable representation.
func (r Ref) IsZero() bool {
	return len(r.Forms()) == 0
}

// Equal reports whether both refs carry exactly the same representations in
// the same order. This is structural equality of the value, used when
// comparing message sequences, not a statement about logical identity.
func (r Ref) Equal(other Ref) bool {
	if r.Primary != other.Primary || len(r.Alternates) != len(other.Alternates) {
		return false
	}
	for i := range r.Alternates {
		if r.Alternates[i] != other.Alternates[i] {
			return false
		}
	}
	return true
}

func (r Ref) String() string {
	if len(r.Alternates) == 0 {
		return r.Primary
	}
	return r.Primary + " (" + strings.Join(r.Alternates, ", ") + ")"
}
