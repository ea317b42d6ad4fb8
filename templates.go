package main

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\$\{\s*([\w.-]+)\s*\}`)

func SplitTemplates(source string, lines []string) ([]string, error) {
	text := strings.Join(lines, "\n")
	templates := make([]string, 0)
	for _, statement := range strings.Split(text, statementSeparator) {
		statement = strings.TrimSpace(statement)
		if statement == "" {
			continue
		}
		templates = append(templates, statement)
	}
	if len(templates) == 0 {
		return nil, &EmptyQueryError{Source: source}
	}
	return templates, nil
}

type UnboundPlaceholderError struct {
	Name string
}

func (e *UnboundPlaceholderError) Error() string {
	return fmt.Sprintf("placeholder ${%v} is not bound", e.Name)
}

// substitute replaces every ${name} in text; the first unbound name fails the
// whole substitution.
func substitute(text string, lookup func(string) (string, bool)) (string, error) {
	var unbound error
	result := placeholder.ReplaceAllStringFunc(text, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		value, ok := lookup(name)
		if !ok {
			if unbound == nil {
				unbound = &UnboundPlaceholderError{Name: name}
			}
			return match
		}
		return value
	})
	if unbound != nil {
		return "", unbound
	}
	return result, nil
}

func placeholders(text string) []string {
	names := make([]string, 0)
	for _, match := range placeholder.FindAllStringSubmatch(text, -1) {
		names = append(names, match[1])
	}
	return names
}
