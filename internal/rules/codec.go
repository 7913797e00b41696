package rules

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// FormatVersion is the rule-file schema version written by Encode.
const FormatVersion = 1

// ErrUnknownFormat is returned by Decode for documents that are not rule files.
var ErrUnknownFormat = errors.New("unrecognized rule file format")

//go:embed rulefile.schema.json
var schemaSource string

var schema = jsonschema.MustCompileString("rulefile.schema.json", schemaSource)

type document struct {
	Version    int                          `yaml:"version"`
	Classes    map[string]string            `yaml:"classes,omitempty"`
	Interfaces map[string]string            `yaml:"interfaces,omitempty"`
	Methods    map[string]map[string]string `yaml:"methods,omitempty"`
}

// Encode writes rs as a versioned YAML rule file.
func Encode(w io.Writer, rs *RuleSet) error {
	doc := document{Version: FormatVersion}
	if len(rs.classes) > 0 {
		doc.Classes = make(map[string]string, len(rs.classes))
		for _, e := range rs.classes {
			doc.Classes[e.Name] = e.Message
		}
	}
	if len(rs.interfaces) > 0 {
		doc.Interfaces = make(map[string]string, len(rs.interfaces))
		for _, e := range rs.interfaces {
			doc.Interfaces[e.Name] = e.Message
		}
	}
	if len(rs.methods) > 0 {
		doc.Methods = make(map[string]map[string]string)
		for _, m := range rs.methods {
			if doc.Methods[m.Owner] == nil {
				doc.Methods[m.Owner] = make(map[string]string)
			}
			doc.Methods[m.Owner][m.Method] = m.Message
		}
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(&doc); err != nil {
		return fmt.Errorf("encode rule file: %w", err)
	}
	return enc.Close()
}

// Decode reads a rule file written by Encode. JSON documents with the same
// shape are accepted too. The document is checked against the rule file
// schema before any entry is read.
func Decode(r io.Reader) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read rule file: %w", err)
	}
	if err := validate(data); err != nil {
		return nil, err
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}

	b := NewBuilder()
	for name, msg := range doc.Classes {
		b.AddClass(name, msg)
	}
	for name, msg := range doc.Interfaces {
		b.AddInterface(name, msg)
	}
	for owner, methods := range doc.Methods {
		for method, msg := range methods {
			b.AddMethod(owner, method, msg)
		}
	}
	return b.Build(), nil
}

// validate normalizes the YAML document to JSON values and checks it
// against the embedded schema.
func validate(data []byte) error {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if raw == nil {
		return fmt.Errorf("%w: empty document", ErrUnknownFormat)
	}
	normalized, err := json.Marshal(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	var v any
	if err := json.Unmarshal(normalized, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrUnknownFormat, err)
	}
	return nil
}
