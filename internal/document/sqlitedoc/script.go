package sqlitedoc

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/roach88/nodecheck/internal/document"
)

// Mutation operations understood by Apply.
const (
	OpAddNode        = "add-node"
	OpSetProperty    = "set-property"
	OpDeleteProperty = "delete-property"
	OpSetReference   = "set-reference"
	OpRemoveNode     = "remove-node"
	OpTouch          = "touch"
)

// Mutation is one scripted edit. Node fields take any representation the
// store parses (node:<id> or path:<doc>/<label>/...).
type Mutation struct {
	Op         string            `yaml:"op"`
	Node       string            `yaml:"node,omitempty"`
	Document   string            `yaml:"document,omitempty"`
	Name       string            `yaml:"name,omitempty"`
	Value      string            `yaml:"value,omitempty"`
	Target     string            `yaml:"target,omitempty"`
	Kind       string            `yaml:"kind,omitempty"`
	Label      string            `yaml:"label,omitempty"`
	Properties map[string]string `yaml:"properties,omitempty"`
}

// ParseScript decodes a YAML list of mutations.
func ParseScript(r io.Reader) ([]Mutation, error) {
	var muts []Mutation
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&muts); err != nil && err != io.EOF {
		return nil, fmt.Errorf("parse script: %w", err)
	}
	return muts, nil
}

// Apply performs one mutation.
func (s *Store) Apply(ctx context.Context, m Mutation) error {
	switch m.Op {
	case OpAddNode:
		var parent document.Key
		if m.Node != "" {
			k, err := s.parseOrFail(m.Node)
			if err != nil {
				return err
			}
			parent = k
		}
		_, err := s.AddNode(ctx, m.Document, parent, NewNode{Kind: m.Kind, Label: m.Label, Properties: m.Properties})
		return err
	case OpTouch:
		return s.Touch(ctx, m.Document)
	case OpSetProperty, OpDeleteProperty, OpSetReference, OpRemoveNode:
	default:
		return fmt.Errorf("apply: unknown op %q", m.Op)
	}

	key, err := s.parseOrFail(m.Node)
	if err != nil {
		return err
	}
	switch m.Op {
	case OpSetProperty:
		return s.SetProperty(ctx, key, m.Name, m.Value)
	case OpDeleteProperty:
		return s.DeleteProperty(ctx, key, m.Name)
	case OpSetReference:
		target, err := s.parseOrFail(m.Target)
		if err != nil {
			return err
		}
		return s.SetReference(ctx, key, m.Name, target)
	default:
		return s.RemoveNode(ctx, key)
	}
}

func (s *Store) parseOrFail(repr string) (document.Key, error) {
	key, ok := s.Parse(repr)
	if !ok {
		return "", fmt.Errorf("apply: cannot parse node %q", repr)
	}
	return key, nil
}
