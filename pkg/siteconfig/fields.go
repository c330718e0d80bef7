package siteconfig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// FieldRule is a selector plus what to read from the element it matches.
type FieldRule struct {
	Selector  string    `yaml:"selector" json:"selector"`
	Attribute Attribute `yaml:"attribute" json:"attribute"`
}

// Field is a named FieldRule.
type Field struct {
	Name string
	Rule FieldRule
}

// FieldSet is an ordered mapping of unique field names to rules. The order
// is the order fields appear in the configuration document, and it is the
// column order of every export.
type FieldSet struct {
	fields []Field
}

// NewFieldSet builds a FieldSet, rejecting duplicate names.
func NewFieldSet(fields ...Field) (FieldSet, error) {
	var fs FieldSet
	for _, f := range fields {
		if err := fs.Add(f.Name, f.Rule); err != nil {
			return FieldSet{}, err
		}
	}
	return fs, nil
}

// MustFieldSet is NewFieldSet for literals known to be valid.
func MustFieldSet(fields ...Field) FieldSet {
	fs, err := NewFieldSet(fields...)
	if err != nil {
		panic(err)
	}
	return fs
}

// Add appends a field.
func (fs *FieldSet) Add(name string, rule FieldRule) error {
	if name == "" {
		return fmt.Errorf("field name must not be empty")
	}
	if _, ok := fs.Get(name); ok {
		return fmt.Errorf("duplicate field %q", name)
	}
	fs.fields = append(fs.fields, Field{Name: name, Rule: rule})
	return nil
}

func (fs FieldSet) Get(name string) (FieldRule, bool) {
	for _, f := range fs.fields {
		if f.Name == name {
			return f.Rule, true
		}
	}
	return FieldRule{}, false
}

func (fs FieldSet) Len() int { return len(fs.fields) }

// All returns the fields in order.
func (fs FieldSet) All() []Field {
	out := make([]Field, len(fs.fields))
	copy(out, fs.fields)
	return out
}

// Names returns the field names in order.
func (fs FieldSet) Names() []string {
	names := make([]string, len(fs.fields))
	for i, f := range fs.fields {
		names[i] = f.Name
	}
	return names
}

// UnmarshalYAML keeps the document order of the mapping.
func (fs *FieldSet) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: fields must be a mapping", node.Line)
	}
	var out FieldSet
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		rule := FieldRule{Attribute: Text}
		if err := value.Decode(&rule); err != nil {
			return fmt.Errorf("field %q: %w", key.Value, err)
		}
		if err := out.Add(key.Value, rule); err != nil {
			return fmt.Errorf("line %d: %w", key.Line, err)
		}
	}
	*fs = out
	return nil
}

func (fs FieldSet) MarshalYAML() (interface{}, error) {
	node := &yaml.Node{Kind: yaml.MappingNode}
	for _, f := range fs.fields {
		var value yaml.Node
		if err := value.Encode(f.Rule); err != nil {
			return nil, err
		}
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Value: f.Name},
			&value,
		)
	}
	return node, nil
}

// UnmarshalJSON keeps the document order of the object.
func (fs *FieldSet) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields must be an object")
	}

	var out FieldSet
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, _ := tok.(string)
		rule := FieldRule{Attribute: Text}
		if err := dec.Decode(&rule); err != nil {
			return fmt.Errorf("field %q: %w", name, err)
		}
		if err := out.Add(name, rule); err != nil {
			return err
		}
	}
	*fs = out
	return nil
}

func (fs FieldSet) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range fs.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		rule, err := json.Marshal(f.Rule)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(rule)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
