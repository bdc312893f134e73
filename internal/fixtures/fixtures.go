// Package fixtures loads node documents from JSON, YAML, CSV and XLSX files.
package fixtures

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/rpattn/nodequery/internal/domain"
	"github.com/rpattn/nodequery/internal/store"
)

// file is the object form of a fixture file. A file may also be a bare list
// of documents.
type file struct {
	Nodes []map[string]any `json:"nodes" yaml:"nodes"`
}

// LoadFile reads the nodes in path. The format follows the extension:
// .yaml and .yml are YAML, .csv and .xlsx are tables whose type defaults to
// the file name without extension, everything else is JSON.
func LoadFile(path string) ([]*domain.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read fixtures: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	var nodes []*domain.Node
	switch ext {
	case ".csv", ".xlsx":
		typeName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		var docs []map[string]any
		docs, err = ParseTable(data, strings.TrimPrefix(ext, "."), typeName)
		if err == nil {
			nodes, err = buildNodes(docs)
		}
	case ".yaml", ".yml":
		nodes, err = Parse(data, "yaml")
	default:
		nodes, err = Parse(data, "json")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return nodes, nil
}

// Parse decodes fixture data in the given format ("json" or "yaml").
// Documents without an id get a random one. Documents without a content
// digest get the digest of their JSON encoding.
func Parse(data []byte, format string) ([]*domain.Node, error) {
	docs, err := decode(data, format)
	if err != nil {
		return nil, err
	}
	return buildNodes(docs)
}

func buildNodes(docs []map[string]any) ([]*domain.Node, error) {
	nodes := make([]*domain.Node, 0, len(docs))
	for i, doc := range docs {
		if _, ok := doc[domain.FieldID]; !ok {
			doc[domain.FieldID] = uuid.NewString()
		}
		node, err := domain.NodeFromDocument(doc)
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", i, err)
		}
		if node.Internal.ContentDigest == "" {
			digest, err := contentDigest(node)
			if err != nil {
				return nil, fmt.Errorf("document %d: %w", i, err)
			}
			node.Internal.ContentDigest = digest
		}
		nodes = append(nodes, node)
	}
	return nodes, nil
}

// Seed loads every path and writes the nodes to w.
func Seed(ctx context.Context, w store.Writer, paths ...string) (int, error) {
	total := 0
	for _, path := range paths {
		nodes, err := LoadFile(path)
		if err != nil {
			return total, err
		}
		if err := w.Put(ctx, nodes...); err != nil {
			return total, fmt.Errorf("failed to store fixtures from %s: %w", path, err)
		}
		total += len(nodes)
	}
	return total, nil
}

func decode(data []byte, format string) ([]map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, nil
	}

	switch format {
	case "json":
		if trimmed[0] == '[' {
			var docs []map[string]any
			if err := json.Unmarshal(trimmed, &docs); err != nil {
				return nil, fmt.Errorf("failed to decode json fixtures: %w", err)
			}
			return docs, nil
		}
		var f file
		if err := json.Unmarshal(trimmed, &f); err != nil {
			return nil, fmt.Errorf("failed to decode json fixtures: %w", err)
		}
		return f.Nodes, nil
	case "yaml":
		var root yaml.Node
		if err := yaml.Unmarshal(trimmed, &root); err != nil {
			return nil, fmt.Errorf("failed to decode yaml fixtures: %w", err)
		}
		if len(root.Content) > 0 && root.Content[0].Kind == yaml.SequenceNode {
			var docs []map[string]any
			if err := root.Decode(&docs); err != nil {
				return nil, fmt.Errorf("failed to decode yaml fixtures: %w", err)
			}
			return docs, nil
		}
		var f file
		if err := root.Decode(&f); err != nil {
			return nil, fmt.Errorf("failed to decode yaml fixtures: %w", err)
		}
		return f.Nodes, nil
	}
	return nil, fmt.Errorf("unknown fixture format %q", format)
}

func contentDigest(node *domain.Node) (string, error) {
	data, err := json.Marshal(node.Fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode node %s: %w", node.ID, err)
	}
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}
