package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// File reads entries from a YAML or JSON file, chosen by extension. The file
// holds either a bare list of entries or a mapping with an "entries" key.
type File struct {
	Path string
}

type fileDoc struct {
	Entries []Entry `json:"entries" yaml:"entries"`
}

// Entries loads and validates the file on every call.
func (f File) Entries(_ context.Context) ([]Entry, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	entries, err := parseFile(filepath.Ext(f.Path), data)
	if err != nil {
		return nil, fmt.Errorf("parsing catalog file %s: %w", f.Path, err)
	}
	return validate(entries)
}

func parseFile(ext string, data []byte) ([]Entry, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch strings.ToLower(ext) {
	case ".json":
		if trimmed[0] == '[' {
			var entries []Entry
			err := json.Unmarshal(trimmed, &entries)
			return entries, err
		}
		var doc fileDoc
		err := json.Unmarshal(trimmed, &doc)
		return doc.Entries, err
	case ".yaml", ".yml":
		var node yaml.Node
		if err := yaml.Unmarshal(trimmed, &node); err != nil {
			return nil, err
		}
		if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
			var entries []Entry
			err := node.Decode(&entries)
			return entries, err
		}
		var doc fileDoc
		err := node.Decode(&doc)
		return doc.Entries, err
	default:
		return nil, fmt.Errorf("unsupported catalog file extension %q", ext)
	}
}
