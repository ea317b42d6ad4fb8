package main

import (
	"regexp"
	"strings"
)

const (
	commentMarker      = "--"
	statementSeparator = ";"
)

var propertyLine = regexp.MustCompile(`^--\s*([\w.-]+)\s*:\s*(.*?)\s*;?\s*$`)

type Property struct {
	Key   string
	Value string
}

type Properties []Property

func (p Properties) Get(key string) (string, bool) {
	for _, property := range p {
		if property.Key == key {
			return property.Value, true
		}
	}
	return "", false
}

func (p Properties) Map() map[string]string {
	result := make(map[string]string, len(p))
	for _, property := range p {
		result[property.Key] = property.Value
	}
	return result
}

func parsePropertyLine(line string) (Property, bool) {
	match := propertyLine.FindStringSubmatch(strings.TrimSpace(line))
	if match == nil {
		return Property{}, false
	}
	return Property{Key: match[1], Value: strings.TrimSpace(match[2])}, true
}

// ParseProperties consumes the leading annotation block of a query source.
// Scanning stops at the first line which is not a property and the rest of
// the lines are returned untouched.
func ParseProperties(source string, lines []string) (Properties, []string, error) {
	properties := make(Properties, 0)
	for i, line := range lines {
		property, ok := parsePropertyLine(line)
		if !ok {
			return properties, lines[i:], nil
		}
		if _, exists := properties.Get(property.Key); exists {
			return nil, nil, &DuplicatePropertyError{Source: source, Key: property.Key, Line: i + 1, Text: line}
		}
		properties = append(properties, property)
	}
	return properties, []string{}, nil
}
