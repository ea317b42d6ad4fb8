package main

import (
	"maps"
	"slices"
	"strings"
)

type VariableDeclaration struct {
	Name   string
	Values []string
}

// VariableSet is one group of declarations expanded as a full product. A
// descriptor with several sets only produces the combinations each set
// allows on its own.
type VariableSet struct {
	ID           string
	Declarations []VariableDeclaration
}

type VariableBinding map[string]string

func (b VariableBinding) Names() []string {
	return slices.Sorted(maps.Keys(b))
}

func (b VariableBinding) canonical() string {
	var builder strings.Builder
	for _, name := range b.Names() {
		builder.WriteString(name)
		builder.WriteByte(0)
		builder.WriteString(b[name])
		builder.WriteByte(0)
	}
	return builder.String()
}

func validateDeclarations(declarations []VariableDeclaration) error {
	seen := make(map[string]bool, len(declarations))
	for _, declaration := range declarations {
		if seen[declaration.Name] {
			return &InvalidVariableError{Variable: declaration.Name, Reason: "declared more than once"}
		}
		seen[declaration.Name] = true
		if len(declaration.Values) == 0 {
			return &InvalidVariableError{Variable: declaration.Name, Reason: "no values declared"}
		}
		values := make(map[string]bool, len(declaration.Values))
		for _, value := range declaration.Values {
			if values[value] {
				return &InvalidVariableError{Variable: declaration.Name, Reason: "value '" + value + "' listed more than once"}
			}
			values[value] = true
		}
	}
	return nil
}

// Expand returns the Cartesian product of the declarations. The last declared
// variable changes fastest; no declarations yield a single empty binding.
func Expand(declarations []VariableDeclaration) ([]VariableBinding, error) {
	if err := validateDeclarations(declarations); err != nil {
		return nil, err
	}
	bindings := []VariableBinding{{}}
	for _, declaration := range declarations {
		next := make([]VariableBinding, 0, len(bindings)*len(declaration.Values))
		for _, binding := range bindings {
			for _, value := range declaration.Values {
				extended := maps.Clone(binding)
				extended[declaration.Name] = value
				next = append(next, extended)
			}
		}
		bindings = next
	}
	return bindings, nil
}

func ExpandSets(sets []VariableSet) ([]VariableBinding, error) {
	if len(sets) == 0 {
		return Expand(nil)
	}
	bindings := make([]VariableBinding, 0)
	seen := make(map[string]bool)
	for _, set := range sets {
		expanded, err := Expand(set.Declarations)
		if err != nil {
			return nil, err
		}
		for _, binding := range expanded {
			key := binding.canonical()
			if seen[key] {
				continue
			}
			seen[key] = true
			bindings = append(bindings, binding)
		}
	}
	return bindings, nil
}

func FilterBindings(bindings []VariableBinding, active map[string][]string) []VariableBinding {
	if len(active) == 0 {
		return bindings
	}
	return slices.DeleteFunc(slices.Clone(bindings), func(binding VariableBinding) bool {
		for name, allowed := range active {
			value, ok := binding[name]
			if ok && !slices.Contains(allowed, value) {
				return true
			}
		}
		return false
	})
}
