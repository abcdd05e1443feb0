package check

import "fmt"

// Severity grades a diagnostic message.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError:
		return true
	}
	return false
}

// LocationKind says which part of the affected node a message points at.
type LocationKind string

const (
	// LocationProperty points at a named property of the node.
	LocationProperty LocationKind = "property"
	// LocationReference points at a named reference or containment link.
	LocationReference LocationKind = "reference"
	// LocationWholeNode points at the node as a whole.
	LocationWholeNode LocationKind = "node"
)

// Location is where within the affected node a message applies.
// Name is empty for LocationWholeNode.
type Location struct {
	Kind LocationKind `json:"kind" yaml:"kind"`
	Name string       `json:"name,omitempty" yaml:"name,omitempty"`
}

// PropertyLocation locates a message at a property.
func PropertyLocation(name string) Location {
	return Location{Kind: LocationProperty, Name: name}
}

// ReferenceLocation locates a message at a reference or containment link.
func ReferenceLocation(name string) Location {
	return Location{Kind: LocationReference, Name: name}
}

// WholeNodeLocation locates a message at the node itself.
func WholeNodeLocation() Location {
	return Location{Kind: LocationWholeNode}
}

func (l Location) String() string {
	if l.Kind == LocationWholeNode || l.Name == "" {
		return string(l.Kind)
	}
	return fmt.Sprintf("%s %q", l.Kind, l.Name)
}

// Message is one diagnostic produced by a checker.
type Message struct {
	Affected Ref      `json:"affected" yaml:"affected"`
	Location Location `json:"location" yaml:"location"`
	Sources  []Ref    `json:"sources,omitempty" yaml:"sources,omitempty"`
	Severity Severity `json:"severity" yaml:"severity"`
	Text     string   `json:"text" yaml:"text"`
}

// Equal reports full value equality of two messages.
func (m Message) Equal(other Message) bool {
	if m.Severity != other.Severity || m.Text != other.Text || m.Location != other.Location {
		return false
	}
	if !m.Affected.Equal(other.Affected) || len(m.Sources) != len(other.Sources) {
		return false
	}
	for i := range m.Sources {
		if !m.Sources[i].Equal(other.Sources[i]) {
			return false
		}
	}
	return true
}

// MessagesEqual reports sequence equality: same length and element-wise
// equal messages in the same order.
func MessagesEqual(a, b []Message) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

// CountBySeverity tallies messages per severity.
func CountBySeverity(msgs []Message) map[Severity]int {
	counts := make(map[Severity]int, 3)
	for _, m := range msgs {
		counts[m.Severity]++
	}
	return counts
}
