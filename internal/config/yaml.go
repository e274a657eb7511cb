package config

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Entry is one named entry point.
type Entry struct {
	Name string `yaml:"name" json:"name"`
	Path string `yaml:"path" json:"path"`
}

// Entries keeps entry points in declaration order. It accepts either an
// ordered mapping (name: path) or a list of {name, path} items.
type Entries []Entry

func (e *Entries) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.MappingNode:
		out := make(Entries, 0, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			k, v := node.Content[i], node.Content[i+1]
			if v.Kind != yaml.ScalarNode {
				return fmt.Errorf("line %d: entry %q must map to a path", v.Line, k.Value)
			}
			out = append(out, Entry{Name: k.Value, Path: v.Value})
		}
		*e = out
		return nil
	case yaml.SequenceNode:
		out := make(Entries, 0, len(node.Content))
		for _, item := range node.Content {
			if err := checkKeys(item, "name", "path"); err != nil {
				return err
			}
			var ent Entry
			if err := item.Decode(&ent); err != nil {
				return err
			}
			out = append(out, ent)
		}
		*e = out
		return nil
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			*e = nil
			return nil
		}
	}
	return fmt.Errorf("line %d: entries must be a mapping or a list", node.Line)
}

func (e Entries) MarshalYAML() (any, error) {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	for _, ent := range e {
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ent.Name},
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: ent.Path},
		)
	}
	return node, nil
}

// UnmarshalYAML accepts a bare transform name or a {name, options} mapping.
func (u *UseConfig) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		u.Name = node.Value
		u.Options = nil
		return nil
	case yaml.MappingNode:
		if err := checkKeys(node, "name", "options"); err != nil {
			return err
		}
		type plain UseConfig
		var p plain
		if err := node.Decode(&p); err != nil {
			return err
		}
		*u = UseConfig(p)
		return nil
	}
	return fmt.Errorf("line %d: use item must be a name or {name, options}", node.Line)
}

func (u UseConfig) MarshalYAML() (any, error) {
	if len(u.Options) == 0 {
		return u.Name, nil
	}
	type plain UseConfig
	return plain(u), nil
}

// UnmarshalYAML records whether name was given so an explicit empty name
// disables extraction while an omitted one takes the default.
func (c *CommonsConfig) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: commons must be a mapping", node.Line)
	}
	if err := checkKeys(node, "name", "chunks", "min_chunks", "disabled"); err != nil {
		return err
	}
	type plain CommonsConfig
	var p plain
	if err := node.Decode(&p); err != nil {
		return err
	}
	*c = CommonsConfig(p)
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == "name" {
			c.nameSpecified = true
		}
	}
	return nil
}

// UnmarshalYAML accepts booleans as well as position names.
func (p *InjectPosition) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: inject must be head, body, true or false", node.Line)
	}
	*p = InjectPosition(strings.ToLower(strings.TrimSpace(node.Value)))
	return nil
}

// StringList accepts a single string or a list of strings.
type StringList []string

func (s *StringList) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" || node.Value == "" {
			*s = nil
			return nil
		}
		*s = StringList{node.Value}
		return nil
	case yaml.SequenceNode:
		var list []string
		if err := node.Decode(&list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	return fmt.Errorf("line %d: expected a string or a list of strings", node.Line)
}

// checkKeys enforces strict decoding inside custom unmarshalers, where the
// decoder's KnownFields setting does not propagate.
func checkKeys(node *yaml.Node, allowed ...string) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected a mapping", node.Line)
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		ok := false
		for _, a := range allowed {
			if key.Value == a {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("line %d: field %s not found (allowed: %s)", key.Line, key.Value, strings.Join(allowed, ", "))
		}
	}
	return nil
}
