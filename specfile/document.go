// Package specfile reads test trees declared in YAML or TOML documents and
// turns them into spec factories. Fixture specs make the runner usable from
// the command line and give every instance its own counter, so a document
// can check that no state leaks between the instances of a run.
package specfile

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// Format is the encoding of a spec document
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

var ErrUnknownFormat = errors.New("unknown spec file format")

// FormatFromPath derives the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

// Document is one spec.
type Document struct {
	Name  string `yaml:"name" toml:"name"`
	Tests []Node `yaml:"tests" toml:"tests"`
}

// Node is a test. Nodes with children, or marked as container, are
// containers; all others are leaves.
type Node struct {
	Name      string `yaml:"name" toml:"name"`
	Container bool   `yaml:"container,omitempty" toml:"container,omitempty"`
	Children  []Node `yaml:"children,omitempty" toml:"children,omitempty"`

	// Outcome of the body. At most one may be set.
	Fail  string `yaml:"fail,omitempty" toml:"fail,omitempty"`
	Error string `yaml:"error,omitempty" toml:"error,omitempty"`
	Panic string `yaml:"panic,omitempty" toml:"panic,omitempty"`

	Sleep   Duration `yaml:"sleep,omitempty" toml:"sleep,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty" toml:"timeout,omitempty"`

	Enabled *bool  `yaml:"enabled,omitempty" toml:"enabled,omitempty"`
	Reason  string `yaml:"reason,omitempty" toml:"reason,omitempty"`

	// Increment is added to the instance counter when the body starts.
	// ExpectCounter fails the test unless the counter then has this value.
	Increment     int  `yaml:"increment,omitempty" toml:"increment,omitempty"`
	ExpectCounter *int `yaml:"expect_counter,omitempty" toml:"expect_counter,omitempty"`
}

// IsContainer reports whether the node may declare children.
func (n *Node) IsContainer() bool {
	return n.Container || len(n.Children) > 0
}

// IsEnabled reports whether the node runs; nodes are enabled by default.
func (n *Node) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// Duration is a time.Duration written as a string such as "150ms".
type Duration time.Duration

func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Parse decodes and validates a document. Unknown fields are rejected.
func Parse(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("parsing yaml: %w", err)
		}
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, fmt.Errorf("parsing toml: %w", err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("parsing toml: unknown field %q", undecoded[0].String())
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}

	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Validate checks names and node settings of the whole tree.
func (d *Document) Validate() error {
	if err := validateName(d.Name); err != nil {
		return fmt.Errorf("invalid spec name: %w", err)
	}
	if len(d.Tests) == 0 {
		return fmt.Errorf("spec %s declares no tests", d.Name)
	}
	return validateNodes(types.NewDescription(d.Name), d.Tests)
}

func validateNodes(parent types.Description, nodes []Node) error {
	seen := make(map[string]struct{}, len(nodes))
	for i := range nodes {
		n := &nodes[i]
		if err := validateName(n.Name); err != nil {
			return fmt.Errorf("invalid test below %q: %w", parent, err)
		}
		desc := parent.Append(n.Name)
		if _, dup := seen[n.Name]; dup {
			return fmt.Errorf("duplicate test %q", desc)
		}
		seen[n.Name] = struct{}{}

		if err := n.validate(desc); err != nil {
			return err
		}
		if err := validateNodes(desc, n.Children); err != nil {
			return err
		}
	}
	return nil
}

func (n *Node) validate(desc types.Description) error {
	outcomes := 0
	for _, o := range []string{n.Fail, n.Error, n.Panic} {
		if o != "" {
			outcomes++
		}
	}
	if outcomes > 1 {
		return fmt.Errorf("test %q sets more than one of fail, error and panic", desc)
	}
	if n.Sleep < 0 || n.Timeout < 0 {
		return fmt.Errorf("test %q has a negative duration", desc)
	}
	if n.Reason != "" && n.IsEnabled() {
		return fmt.Errorf("test %q has a skip reason but is enabled", desc)
	}
	return nil
}

// validateName rejects names that cannot be addressed by a filter selector
func validateName(name string) error {
	if err := types.ValidateName(name); err != nil {
		return err
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("name %q cannot contain '/'", name)
	}
	return nil
}
