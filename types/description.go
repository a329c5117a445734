package types

import (
	"fmt"
	"strings"
)

// idSeparator joins description parts into map keys. It cannot appear in
// a valid test name.
const idSeparator = "\x1f"

// Description identifies a test by the names on the path from the spec root
// down to the test. Descriptions are immutable; every method that derives a
// new description copies the underlying names.
type Description struct {
	spec  string
	names []string
}

// NewDescription creates a description for the given spec and path of names.
// A description with no names refers to the spec itself.
func NewDescription(spec string, names ...string) Description {
	cp := make([]string, len(names))
	copy(cp, names)
	return Description{spec: spec, names: cp}
}

// ParseDescription parses a selector such as "calculator/addition/adds".
// The first element is the spec name. Empty elements are dropped, like
// repeated or trailing slashes in Go subtest names.
func ParseDescription(path string) (Description, error) {
	parts := strings.Split(path, "/")
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return Description{}, fmt.Errorf("description %q has no spec name", path)
	}
	return NewDescription(clean[0], clean[1:]...), nil
}

// ValidateName checks that a single test name can be part of a description.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("test name cannot be empty")
	}
	if strings.Contains(name, idSeparator) {
		return fmt.Errorf("test name %q contains a control character", name)
	}
	return nil
}

// Spec returns the name of the spec this description belongs to.
func (d Description) Spec() string {
	return d.spec
}

// Names returns a copy of the path of names, root first.
func (d Description) Names() []string {
	cp := make([]string, len(d.names))
	copy(cp, d.names)
	return cp
}

// Name returns the last name in the path, or the spec name for the root.
func (d Description) Name() string {
	if len(d.names) == 0 {
		return d.spec
	}
	return d.names[len(d.names)-1]
}

// Depth is the number of names in the path. Top-level tests have depth 1.
func (d Description) Depth() int {
	return len(d.names)
}

// IsRoot reports whether the description refers to the spec itself.
func (d Description) IsRoot() bool {
	return len(d.names) == 0
}

// Append returns the description of a child named name.
func (d Description) Append(name string) Description {
	names := make([]string, len(d.names), len(d.names)+1)
	copy(names, d.names)
	return Description{spec: d.spec, names: append(names, name)}
}

// Parent returns the enclosing description. The root has no parent.
func (d Description) Parent() (Description, bool) {
	if len(d.names) == 0 {
		return Description{}, false
	}
	return NewDescription(d.spec, d.names[:len(d.names)-1]...), true
}

// Equal reports whether both descriptions identify the same node.
func (d Description) Equal(other Description) bool {
	if d.spec != other.spec || len(d.names) != len(other.names) {
		return false
	}
	return d.isPrefixOf(other)
}

// IsAncestorOf reports whether d is a strict prefix of other.
func (d Description) IsAncestorOf(other Description) bool {
	if d.spec != other.spec || len(d.names) >= len(other.names) {
		return false
	}
	return d.isPrefixOf(other)
}

// IsDescendantOf reports whether other is a strict prefix of d.
func (d Description) IsDescendantOf(other Description) bool {
	return other.IsAncestorOf(d)
}

// IsParentOf reports whether other is a direct child of d.
func (d Description) IsParentOf(other Description) bool {
	return len(d.names)+1 == len(other.names) && d.IsAncestorOf(other)
}

func (d Description) isPrefixOf(other Description) bool {
	for i, name := range d.names {
		if other.names[i] != name {
			return false
		}
	}
	return true
}

// ID returns a key that is unique per node across specs, suitable for maps.
func (d Description) ID() string {
	if len(d.names) == 0 {
		return d.spec
	}
	return d.spec + idSeparator + strings.Join(d.names, idSeparator)
}

// FullName returns the path below the spec joined with " / ".
func (d Description) FullName() string {
	return strings.Join(d.names, " / ")
}

// String returns the spec name followed by the path, for logs and tables.
func (d Description) String() string {
	if len(d.names) == 0 {
		return d.spec
	}
	return d.spec + ": " + d.FullName()
}
