package runner

import (
	"fmt"

	"github.com/ethereum-optimism/op-leafrunner/types"
)

// Filter restricts a run to selected tests. A test is included when it is a
// selector, lies below one, or is a container on the path to one.
type Filter struct {
	selectors []types.Description
}

// NewFilter parses selectors of the form "spec/container/test". An empty
// list selects everything.
func NewFilter(exprs []string) (*Filter, error) {
	f := &Filter{}
	for _, expr := range exprs {
		d, err := types.ParseDescription(expr)
		if err != nil {
			return nil, fmt.Errorf("invalid filter %q: %w", expr, err)
		}
		f.selectors = append(f.selectors, d)
	}
	return f, nil
}

// Includes reports whether d should run. A nil filter includes everything.
func (f *Filter) Includes(d types.Description) bool {
	if f == nil || len(f.selectors) == 0 {
		return true
	}
	for _, sel := range f.selectors {
		if sel.Equal(d) || sel.IsAncestorOf(d) || d.IsAncestorOf(sel) {
			return true
		}
	}
	return false
}

// IncludesSpec reports whether any selector targets the named spec.
func (f *Filter) IncludesSpec(name string) bool {
	return f.Includes(types.NewDescription(name))
}
