package memdoc

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// file is the on-disk layout: a list of mappings, each with a "kind" key
// selecting the element type.
type file struct {
	Elements []yaml.Node `yaml:"elements"`
}

// Load reads a document from YAML.
func Load(r io.Reader) (*Document, error) {
	var f file
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode document: %w", err)
	}

	doc := New()
	for i := range f.Elements {
		n := &f.Elements[i]
		var head struct {
			Kind string `yaml:"kind"`
		}
		if err := n.Decode(&head); err != nil {
			return nil, fmt.Errorf("element %d: %w", i, err)
		}
		factory, ok := factories[head.Kind]
		if !ok {
			return nil, fmt.Errorf("element %d (line %d): unknown kind %q", i, n.Line, head.Kind)
		}
		el := factory()
		if err := n.Decode(el); err != nil {
			return nil, fmt.Errorf("element %d (%s): %w", i, head.Kind, err)
		}
		doc.Seed(el)
	}
	return doc, nil
}

// LoadFile reads a document from a YAML file.
func LoadFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Save writes the document as YAML in element order.
func (d *Document) Save(w io.Writer) error {
	var f file
	for _, el := range d.Elements() {
		e := el.(Element)
		var n yaml.Node
		if err := n.Encode(e); err != nil {
			return fmt.Errorf("encode %s %s: %w", e.kind(), e.HandleID(), err)
		}
		kindKey := &yaml.Node{Kind: yaml.ScalarNode, Value: "kind"}
		kindVal := &yaml.Node{Kind: yaml.ScalarNode, Value: e.kind()}
		n.Content = append([]*yaml.Node{kindKey, kindVal}, n.Content...)
		f.Elements = append(f.Elements, n)
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode document: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := w.Write(buf.Bytes())
	return err
}

// SaveFile writes the document to path.
func (d *Document) SaveFile(path string) error {
	var buf bytes.Buffer
	if err := d.Save(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
