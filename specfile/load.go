package specfile

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/ethereum/go-ethereum/log"

	"github.com/ethereum-optimism/op-leafrunner/spec"
)

// Load reads one spec file.
func Load(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}

	log.Debug("Reading spec file", "path", path)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading spec file: %w", err)
	}

	doc, err := Parse(data, format)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return doc, nil
}

// LoadDir reads every spec file below dir, in lexical path order. Files
// with other extensions are ignored.
func LoadDir(dir string) ([]*Document, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, err := FormatFromPath(path); err == nil {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dir, err)
	}
	sort.Strings(paths)

	docs := make([]*Document, 0, len(paths))
	for _, path := range paths {
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// LoadPaths reads files and directories and returns one factory per spec.
// Spec names must be unique across all inputs.
func LoadPaths(paths []string) ([]spec.Factory, error) {
	var docs []*Document
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("spec path: %w", err)
		}
		if info.IsDir() {
			found, err := LoadDir(path)
			if err != nil {
				return nil, err
			}
			docs = append(docs, found...)
			continue
		}
		doc, err := Load(path)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}

	seen := make(map[string]struct{}, len(docs))
	factories := make([]spec.Factory, 0, len(docs))
	for _, doc := range docs {
		if _, dup := seen[doc.Name]; dup {
			return nil, fmt.Errorf("spec %s is declared more than once", doc.Name)
		}
		seen[doc.Name] = struct{}{}
		factories = append(factories, Factory(doc))
	}
	return factories, nil
}
