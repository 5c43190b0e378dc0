package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/buger/jsonparser"
	"gopkg.in/yaml.v3"

	"github.com/starford/fileviewer/internal/models"
)

// buildJSON validates the document first so the error text matches what
// encoding/json reports, then walks it with jsonparser to keep key order.
func buildJSON(data []byte) ([]models.TreeNode, error) {
	if !json.Valid(data) {
		var v any
		msg := "invalid JSON document"
		if err := json.Unmarshal(data, &v); err != nil {
			msg = err.Error()
		}
		return nil, &ParseError{Format: FormatJSON, Message: msg}
	}

	value, dt, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, &ParseError{Format: FormatJSON, Message: err.Error()}
	}
	nodes, err := jsonValue(value, dt, "", false)
	if err != nil {
		return nil, &ParseError{Format: FormatJSON, Message: err.Error()}
	}
	return nodes, nil
}

func jsonValue(value []byte, dt jsonparser.ValueType, key string, keyed bool) ([]models.TreeNode, error) {
	switch dt {
	case jsonparser.Object:
		var children []models.TreeNode
		// A repeated key keeps its first position and takes the last value.
		pos := make(map[string]int)
		err := jsonparser.ObjectEach(value, func(k, v []byte, vt jsonparser.ValueType, _ int) error {
			name, err := jsonparser.ParseString(k)
			if err != nil {
				return err
			}
			nodes, err := jsonValue(v, vt, name, true)
			if err != nil {
				return err
			}
			if i, ok := pos[name]; ok {
				children[i] = nodes[0]
				return nil
			}
			pos[name] = len(children)
			children = append(children, nodes...)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if !keyed {
			return nonNil(children), nil
		}
		return []models.TreeNode{{Label: key, Type: TypeObject, Children: nonNil(children)}}, nil

	case jsonparser.Array:
		var (
			children []models.TreeNode
			n        int
			walkErr  error
		)
		_, err := jsonparser.ArrayEach(value, func(v []byte, vt jsonparser.ValueType, _ int, err error) {
			if walkErr != nil {
				return
			}
			if err != nil {
				walkErr = err
				return
			}
			nodes, err := jsonValue(v, vt, indexLabel(n), true)
			if err != nil {
				walkErr = err
				return
			}
			children = append(children, nodes...)
			n++
		})
		if err == nil {
			err = walkErr
		}
		if err != nil {
			return nil, err
		}
		label := rootArrayLabel
		if keyed {
			label = key
		}
		return []models.TreeNode{{Label: label, Type: arrayType(n), Children: nonNil(children)}}, nil

	case jsonparser.String:
		text, err := jsonparser.ParseString(value)
		if err != nil {
			return nil, err
		}
		return scalarNode(key, keyed, text, TypeString), nil
	case jsonparser.Number:
		return scalarNode(key, keyed, string(value), TypeNumber), nil
	case jsonparser.Boolean:
		return scalarNode(key, keyed, string(value), TypeBoolean), nil
	case jsonparser.Null:
		return scalarNode(key, keyed, "null", TypeNull), nil
	}
	return nil, fmt.Errorf("unexpected value type %v", dt)
}

// buildYAML decodes a single-document stream into a yaml.Node so mapping
// order survives.
func buildYAML(data []byte) ([]models.TreeNode, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var doc yaml.Node
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return scalarNode("", false, "null", TypeNull), nil
		}
		return nil, &ParseError{Format: FormatYAML, Message: err.Error()}
	}

	var next yaml.Node
	switch err := dec.Decode(&next); {
	case errors.Is(err, io.EOF):
	case err != nil:
		return nil, &ParseError{Format: FormatYAML, Message: err.Error()}
	default:
		return nil, &ParseError{Format: FormatYAML, Message: "expected a single document in the stream but found another document"}
	}

	w := yamlWalker{active: make(map[*yaml.Node]bool)}
	nodes, err := w.value(&doc, "", false)
	if err != nil {
		return nil, &ParseError{Format: FormatYAML, Message: err.Error()}
	}
	return nodes, nil
}

type yamlPair struct {
	key   string
	value *yaml.Node
}

// yamlWalker tracks the nodes on the current path to reject recursive aliases.
type yamlWalker struct {
	active map[*yaml.Node]bool
}

func (w yamlWalker) value(n *yaml.Node, key string, keyed bool) ([]models.TreeNode, error) {
	if w.active[n] {
		return nil, fmt.Errorf("line %d: recursive alias", n.Line)
	}
	w.active[n] = true
	defer delete(w.active, n)

	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return scalarNode(key, keyed, "null", TypeNull), nil
		}
		return w.value(n.Content[0], key, keyed)

	case yaml.AliasNode:
		return w.value(n.Alias, key, keyed)

	case yaml.MappingNode:
		pairs, err := mappingPairs(n, make(map[*yaml.Node]bool))
		if err != nil {
			return nil, err
		}
		var children []models.TreeNode
		for _, p := range pairs {
			nodes, err := w.value(p.value, p.key, true)
			if err != nil {
				return nil, err
			}
			children = append(children, nodes...)
		}
		if !keyed {
			return nonNil(children), nil
		}
		return []models.TreeNode{{Label: key, Type: TypeObject, Children: nonNil(children)}}, nil

	case yaml.SequenceNode:
		children := make([]models.TreeNode, 0, len(n.Content))
		for i, item := range n.Content {
			nodes, err := w.value(item, indexLabel(i), true)
			if err != nil {
				return nil, err
			}
			children = append(children, nodes...)
		}
		label := rootArrayLabel
		if keyed {
			label = key
		}
		return []models.TreeNode{{Label: label, Type: arrayType(len(n.Content)), Children: children}}, nil

	case yaml.ScalarNode:
		typ := yamlScalarType(n)
		text := n.Value
		if typ == TypeNull {
			text = "null"
		}
		return scalarNode(key, keyed, text, typ), nil
	}
	return nil, fmt.Errorf("line %d: unsupported node kind %d", n.Line, n.Kind)
}

// mappingPairs lists the entries of a mapping with "<<" merge keys expanded.
// Merged entries come first; explicit keys override merged ones. A repeated
// explicit key keeps its first position and takes the last value. expanding
// holds the mappings whose merges are being resolved, so a mapping that
// merges itself is reported instead of expanded forever.
func mappingPairs(n *yaml.Node, expanding map[*yaml.Node]bool) ([]yamlPair, error) {
	if expanding[n] {
		return nil, fmt.Errorf("line %d: recursive merge", n.Line)
	}
	expanding[n] = true
	defer delete(expanding, n)

	var merged, own []yamlPair
	pos := make(map[string]int)

	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			pairs, err := mergeSources(v, expanding)
			if err != nil {
				return nil, err
			}
			merged = append(merged, pairs...)
			continue
		}
		if j, ok := pos[k.Value]; ok {
			own[j].value = v
			continue
		}
		pos[k.Value] = len(own)
		own = append(own, yamlPair{key: k.Value, value: v})
	}
	if len(merged) == 0 {
		return own, nil
	}

	out := make([]yamlPair, 0, len(merged)+len(own))
	seen := make(map[string]bool, len(merged))
	for _, p := range merged {
		if _, ok := pos[p.key]; ok || seen[p.key] {
			continue
		}
		seen[p.key] = true
		out = append(out, p)
	}
	return append(out, own...), nil
}

// mergeSources returns the entries a "<<" value contributes: one mapping or
// a sequence of mappings, possibly behind aliases.
func mergeSources(v *yaml.Node, expanding map[*yaml.Node]bool) ([]yamlPair, error) {
	for v.Kind == yaml.AliasNode && v.Alias != nil {
		v = v.Alias
	}
	switch v.Kind {
	case yaml.MappingNode:
		return mappingPairs(v, expanding)
	case yaml.SequenceNode:
		var out []yamlPair
		for _, item := range v.Content {
			for item.Kind == yaml.AliasNode && item.Alias != nil {
				item = item.Alias
			}
			if item.Kind != yaml.MappingNode {
				continue
			}
			pairs, err := mappingPairs(item, expanding)
			if err != nil {
				return nil, err
			}
			out = append(out, pairs...)
		}
		return out, nil
	}
	return nil, nil
}

func yamlScalarType(n *yaml.Node) string {
	switch n.ShortTag() {
	case "!!null":
		return TypeNull
	case "!!bool":
		return TypeBoolean
	case "!!int", "!!float":
		return TypeNumber
	default:
		return TypeString
	}
}
