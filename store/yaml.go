package store

import (
	"fmt"
	"math"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/stevemurr/stub-server/record"
)

// maxYAMLDepth bounds nesting, counting alias hops.
const maxYAMLDepth = 512

// Alias expansion may visit at most yamlExpansionFactor times the nodes
// written in the file, and never less than minYAMLBudget.
const (
	yamlExpansionFactor = 8
	minYAMLBudget       = 1 << 16
)

var errYAMLExpansion = errors.New("yaml: aliases expand to too many nodes")

// decodeYAML reads a YAML sequence of mappings. Mapping key order is kept,
// so a YAML fixture serves fields in the order they were written.
func decodeYAML(data []byte) ([]record.Record, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	d := &yamlDecoder{budget: max(minYAMLBudget, yamlExpansionFactor*countNodes(&doc))}
	v, err := d.value(&doc, 0)
	if err != nil {
		return nil, err
	}
	items, ok := v.Array()
	if !ok {
		return nil, record.ErrNotArray
	}
	return record.Objects(items), nil
}

// countNodes counts the nodes of the parsed tree without following aliases.
func countNodes(n *yaml.Node) int {
	total := 1
	for _, c := range n.Content {
		total += countNodes(c)
	}
	return total
}

type yamlDecoder struct {
	budget int
}

func (d *yamlDecoder) value(n *yaml.Node, depth int) (record.Value, error) {
	if depth > maxYAMLDepth {
		return record.Value{}, fmt.Errorf("line %d: document nested too deeply", n.Line)
	}
	if d.budget--; d.budget < 0 {
		return record.Value{}, errYAMLExpansion
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return record.NullValue(), nil
		}
		return d.value(n.Content[0], depth+1)
	case yaml.AliasNode:
		return d.value(n.Alias, depth+1)
	case yaml.SequenceNode:
		items := make([]record.Value, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := d.value(c, depth+1)
			if err != nil {
				return record.Value{}, err
			}
			items = append(items, v)
		}
		return record.ArrayValue(items...), nil
	case yaml.MappingNode:
		var r record.Record
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, val := n.Content[i], n.Content[i+1]
			if key.Kind != yaml.ScalarNode {
				return record.Value{}, fmt.Errorf("line %d: mapping keys must be scalars", key.Line)
			}
			v, err := d.value(val, depth+1)
			if err != nil {
				return record.Value{}, err
			}
			r.Set(key.Value, v)
		}
		return record.ObjectValue(r), nil
	case yaml.ScalarNode:
		return yamlScalar(n), nil
	}
	return record.Value{}, fmt.Errorf("line %d: unsupported YAML node", n.Line)
}

func yamlScalar(n *yaml.Node) record.Value {
	switch n.ShortTag() {
	case "!!null":
		return record.NullValue()
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return record.BoolValue(b)
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return record.IntValue(i)
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return record.NumberValue(strconv.FormatFloat(f, 'g', -1, 64))
		}
	}
	return record.StringValue(n.Value)
}
