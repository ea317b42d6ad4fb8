package main

import (
	"fmt"
	"path"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	fieldDataSource      = "data-source"
	fieldDataSourceAlias = "datasource"
	fieldQueryNames      = "query-names"
	fieldRuns            = "runs"
	fieldPrewarmRuns     = "prewarm-runs"
	fieldConcurrency     = "concurrency"
	fieldBeforeBenchmark = "before-benchmark"
	fieldAfterBenchmark  = "after-benchmark"
	fieldBeforeExecution = "before-execution"
	fieldAfterExecution  = "after-execution"
	fieldVariables       = "variables"
)

var descriptorExtensions = []string{".yaml", ".yml"}

type Descriptor struct {
	Name                  string
	DataSource            string
	QueryNames            []string
	Runs                  int
	PrewarmRuns           int
	Concurrency           int
	BeforeBenchmarkMacros []string
	AfterBenchmarkMacros  []string
	BeforeExecutionMacros []string
	AfterExecutionMacros  []string
	VariableSets          []VariableSet
}

// DescriptorName maps a descriptor path relative to the benchmarks dir to its
// identifier: the path without the yaml extension.
func DescriptorName(file string) string {
	for _, extension := range descriptorExtensions {
		if strings.HasSuffix(file, extension) {
			return strings.TrimSuffix(file, extension)
		}
	}
	return file
}

func isDescriptorFile(file string) bool {
	for _, extension := range descriptorExtensions {
		if path.Ext(file) == extension {
			return true
		}
	}
	return false
}

func ParseDescriptor(name string, content []byte) (*Descriptor, error) {
	var document yaml.Node
	if err := yaml.Unmarshal(content, &document); err != nil {
		return nil, fmt.Errorf("failed to parse descriptor %v: %w", name, err)
	}
	if document.Kind != yaml.DocumentNode || len(document.Content) == 0 {
		return nil, &InvalidDescriptorError{Descriptor: name, Field: fieldDataSource, Reason: "descriptor is empty"}
	}
	root := document.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, &InvalidDescriptorError{Descriptor: name, Field: "<root>", Reason: fmt.Sprintf("expected mapping at line %v", root.Line)}
	}

	descriptor := &Descriptor{Name: name, Concurrency: 1}
	seen := make(map[string]bool)
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, value := root.Content[i].Value, root.Content[i+1]
		if key == fieldDataSourceAlias {
			key = fieldDataSource
		}
		if seen[key] {
			return nil, &InvalidDescriptorError{Descriptor: name, Field: key, Reason: fmt.Sprintf("declared more than once (line %v)", root.Content[i].Line)}
		}
		seen[key] = true

		var err error
		switch key {
		case fieldDataSource:
			descriptor.DataSource, err = decodeString(value)
		case fieldQueryNames:
			descriptor.QueryNames, err = decodeList(value)
		case fieldRuns:
			descriptor.Runs, err = decodeInt(value)
		case fieldPrewarmRuns:
			descriptor.PrewarmRuns, err = decodeInt(value)
		case fieldConcurrency:
			descriptor.Concurrency, err = decodeInt(value)
		case fieldBeforeBenchmark:
			descriptor.BeforeBenchmarkMacros, err = decodeList(value)
		case fieldAfterBenchmark:
			descriptor.AfterBenchmarkMacros, err = decodeList(value)
		case fieldBeforeExecution:
			descriptor.BeforeExecutionMacros, err = decodeList(value)
		case fieldAfterExecution:
			descriptor.AfterExecutionMacros, err = decodeList(value)
		case fieldVariables:
			descriptor.VariableSets, err = decodeVariables(value)
		default:
			err = fmt.Errorf("unknown field")
		}
		if err != nil {
			return nil, &InvalidDescriptorError{Descriptor: name, Field: key, Reason: fmt.Sprintf("line %v: %v", value.Line, err)}
		}
	}
	if err := descriptor.validate(); err != nil {
		return nil, err
	}
	return descriptor, nil
}

func (d *Descriptor) validate() error {
	invalid := func(field, reason string) error {
		return &InvalidDescriptorError{Descriptor: d.Name, Field: field, Reason: reason}
	}
	if strings.TrimSpace(d.DataSource) == "" {
		return invalid(fieldDataSource, "data source is required")
	}
	if len(d.QueryNames) == 0 {
		return invalid(fieldQueryNames, "at least one query is required")
	}
	names := make(map[string]bool, len(d.QueryNames))
	for _, query := range d.QueryNames {
		if names[query] {
			return invalid(fieldQueryNames, fmt.Sprintf("query '%v' listed more than once", query))
		}
		names[query] = true
	}
	if d.Runs < 1 {
		return invalid(fieldRuns, fmt.Sprintf("must be positive, got %v", d.Runs))
	}
	if d.PrewarmRuns < 0 {
		return invalid(fieldPrewarmRuns, fmt.Sprintf("must not be negative, got %v", d.PrewarmRuns))
	}
	if d.Concurrency < 1 {
		return invalid(fieldConcurrency, fmt.Sprintf("must be positive, got %v", d.Concurrency))
	}
	return nil
}

func decodeString(node *yaml.Node) (string, error) {
	if node.Kind != yaml.ScalarNode {
		return "", fmt.Errorf("expected a scalar value")
	}
	return strings.TrimSpace(node.Value), nil
}

func decodeInt(node *yaml.Node) (int, error) {
	var value int
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("expected an integer")
	}
	if err := node.Decode(&value); err != nil {
		return 0, fmt.Errorf("expected an integer, got '%v'", node.Value)
	}
	return value, nil
}

// decodeList accepts both a yaml sequence and a comma separated scalar.
func decodeList(node *yaml.Node) ([]string, error) {
	values := make([]string, 0)
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return values, nil
		}
		for _, value := range strings.Split(node.Value, ",") {
			if value = strings.TrimSpace(value); value != "" {
				values = append(values, value)
			}
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			if item.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("expected scalar list items, got nested value at line %v", item.Line)
			}
			if value := strings.TrimSpace(item.Value); value != "" {
				values = append(values, value)
			}
		}
	default:
		return nil, fmt.Errorf("expected a list or a comma separated string")
	}
	return values, nil
}

// decodeVariables reads either `name: values` pairs, which form a single set,
// or `set-id: {name: values}` groups, one set per group.
func decodeVariables(node *yaml.Node) ([]VariableSet, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("expected a mapping of variables")
	}
	nested := 0
	for i := 1; i < len(node.Content); i += 2 {
		if node.Content[i].Kind == yaml.MappingNode {
			nested++
		}
	}
	pairs := len(node.Content) / 2
	switch {
	case pairs == 0:
		return nil, nil
	case nested == 0:
		declarations, err := decodeDeclarations(node)
		if err != nil {
			return nil, err
		}
		return []VariableSet{{Declarations: declarations}}, nil
	case nested == pairs:
		sets := make([]VariableSet, 0, pairs)
		for i := 0; i+1 < len(node.Content); i += 2 {
			declarations, err := decodeDeclarations(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("variable set '%v': %w", node.Content[i].Value, err)
			}
			sets = append(sets, VariableSet{ID: node.Content[i].Value, Declarations: declarations})
		}
		return sets, nil
	}
	return nil, fmt.Errorf("variables mix plain declarations and variable sets")
}

func decodeDeclarations(node *yaml.Node) ([]VariableDeclaration, error) {
	declarations := make([]VariableDeclaration, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		name := strings.TrimSpace(node.Content[i].Value)
		values, err := decodeList(node.Content[i+1])
		if err != nil {
			return nil, fmt.Errorf("variable '%v': %w", name, err)
		}
		declarations = append(declarations, VariableDeclaration{Name: name, Values: values})
	}
	return declarations, nil
}
