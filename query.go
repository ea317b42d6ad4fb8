package main

import (
	"fmt"
	"path"
	"slices"
	"strings"
)

type Query struct {
	Name       string
	Properties Properties
	templates  []string
}

func NewQuery(name string, properties Properties, templates []string) *Query {
	return &Query{
		Name:       name,
		Properties: slices.Clone(properties),
		templates:  slices.Clone(templates),
	}
}

func (q *Query) Property(key string) (string, bool) { return q.Properties.Get(key) }

func (q *Query) SQLTemplates() []string { return slices.Clone(q.templates) }

// Placeholders lists the distinct ${name} references over all templates in
// order of first appearance.
func (q *Query) Placeholders() []string {
	names := make([]string, 0)
	for _, template := range q.templates {
		for _, name := range placeholders(template) {
			if !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
	}
	return names
}

func (q *Query) Render(attributes Attributes) ([]string, error) {
	statements := make([]string, 0, len(q.templates))
	for i, template := range q.templates {
		statement, err := substitute(template, attributes.Lookup)
		if err != nil {
			return nil, fmt.Errorf("failed to render statement #%v of query %v: %w", i+1, q.Name, err)
		}
		statements = append(statements, statement)
	}
	return statements, nil
}

func ParseQuery(name string, lines []string) (*Query, error) {
	properties, remainder, err := ParseProperties(name, lines)
	if err != nil {
		return nil, err
	}
	templates, err := SplitTemplates(name, remainder)
	if err != nil {
		return nil, err
	}
	return &Query{Name: name, Properties: properties, templates: templates}, nil
}

// QueryName strips directories and every extension from a query file name.
func QueryName(file string) string {
	base := path.Base(file)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func ParseQueryFile(file string, content []byte) (*Query, error) {
	return ParseQuery(QueryName(file), splitLines(string(content)))
}

func splitLines(text string) []string {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}
