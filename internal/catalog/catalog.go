// Package catalog holds the closed set of capability keys the platform
// recognises: navigation destinations and sensitive action keys. The catalog
// is parsed once at process start and is immutable afterwards, so it can be
// shared by any number of concurrent readers without locking.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Kind distinguishes navigation destinations from sensitive actions.
type Kind string

const (
	// KindNavigation marks a navigation destination.
	KindNavigation Kind = "navigation"
	// KindAction marks a sensitive action gated by the approval workflow.
	KindAction Kind = "action"
)

// ErrUnknownCapability indicates a key the catalog does not recognise.
var ErrUnknownCapability = errors.New("catalog: unknown capability")

// Node identifies one controllable unit. Parent is display-only and never
// participates in authorization decisions.
type Node struct {
	Key    string `yaml:"key"`
	Kind   Kind   `yaml:"kind"`
	Parent string `yaml:"parent,omitempty"`
	Label  string `yaml:"label"`
	// Manual marks an action whose approval is fulfilled by the requesting
	// user rather than an auto-execution handler.
	Manual bool `yaml:"manual,omitempty"`
}

// Catalog is a flat, read-only lookup over capability nodes.
type Catalog struct {
	nodes map[string]Node
	order []string
}

type document struct {
	Capabilities []Node `yaml:"capabilities"`
}

//go:embed capabilities.yaml
var defaultDocument []byte

// Load parses the embedded capability document.
func Load() (*Catalog, error) {
	return Parse(defaultDocument)
}

// Parse builds a catalog from a YAML capability document.
func Parse(data []byte) (*Catalog, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("catalog: parse document: %w", err)
	}
	if len(doc.Capabilities) == 0 {
		return nil, errors.New("catalog: document declares no capabilities")
	}

	c := &Catalog{nodes: make(map[string]Node, len(doc.Capabilities))}
	for _, node := range doc.Capabilities {
		node.Key = strings.TrimSpace(node.Key)
		if node.Key == "" {
			return nil, errors.New("catalog: capability with empty key")
		}
		if node.Kind != KindNavigation && node.Kind != KindAction {
			return nil, fmt.Errorf("catalog: capability %s has invalid kind %q", node.Key, node.Kind)
		}
		if _, exists := c.nodes[node.Key]; exists {
			return nil, fmt.Errorf("catalog: duplicate capability %s", node.Key)
		}
		c.nodes[node.Key] = node
		c.order = append(c.order, node.Key)
	}

	for _, node := range c.nodes {
		if node.Parent == "" {
			continue
		}
		parent, ok := c.nodes[node.Parent]
		if !ok {
			return nil, fmt.Errorf("catalog: capability %s references missing parent %s", node.Key, node.Parent)
		}
		if parent.Kind != KindNavigation {
			return nil, fmt.Errorf("catalog: capability %s has non-navigation parent %s", node.Key, node.Parent)
		}
	}
	return c, nil
}

// Lookup returns the node for key or ErrUnknownCapability.
func (c *Catalog) Lookup(key string) (Node, error) {
	node, ok := c.nodes[key]
	if !ok {
		return Node{}, fmt.Errorf("%w: %s", ErrUnknownCapability, key)
	}
	return node, nil
}

// Known reports whether key exists in the catalog.
func (c *Catalog) Known(key string) bool {
	_, ok := c.nodes[key]
	return ok
}

// Keys returns all capability keys of the given kind in declaration order.
func (c *Catalog) Keys(kind Kind) []string {
	keys := make([]string, 0, len(c.order))
	for _, key := range c.order {
		if c.nodes[key].Kind == kind {
			keys = append(keys, key)
		}
	}
	return keys
}

// Len returns the number of capabilities in the catalog.
func (c *Catalog) Len() int {
	return len(c.nodes)
}
