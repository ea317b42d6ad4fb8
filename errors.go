package main

import (
	"fmt"
)

type DuplicatePropertyError struct {
	Source string
	Key    string
	Line   int
	Text   string
}

func (e *DuplicatePropertyError) Error() string {
	return fmt.Sprintf("duplicate property '%v' in %v at line %v: %q", e.Key, e.Source, e.Line, e.Text)
}

type EmptyQueryError struct {
	Source string
}

func (e *EmptyQueryError) Error() string {
	return fmt.Sprintf("query %v has no sql statements", e.Source)
}

type InvalidVariableError struct {
	Descriptor string
	Variable   string
	Reason     string
}

func (e *InvalidVariableError) Error() string {
	if e.Descriptor == "" {
		return fmt.Sprintf("invalid variable '%v': %v", e.Variable, e.Reason)
	}
	return fmt.Sprintf("invalid variable '%v' in %v: %v", e.Variable, e.Descriptor, e.Reason)
}

type UnresolvedQueryError struct {
	Descriptor string
	Query      string
	Err        error
}

func (e *UnresolvedQueryError) Error() string {
	if e.Descriptor == "" {
		return fmt.Sprintf("unable to resolve query '%v': %v", e.Query, e.Err)
	}
	return fmt.Sprintf("unable to resolve query '%v' referenced by %v: %v", e.Query, e.Descriptor, e.Err)
}

func (e *UnresolvedQueryError) Unwrap() error { return e.Err }

type InvalidDescriptorError struct {
	Descriptor string
	Field      string
	Reason     string
}

func (e *InvalidDescriptorError) Error() string {
	return fmt.Sprintf("invalid field '%v' in %v: %v", e.Field, e.Descriptor, e.Reason)
}

type DuplicateBenchmarkNameError struct {
	Name       string
	Descriptor string
	Previous   string
}

func (e *DuplicateBenchmarkNameError) Error() string {
	return fmt.Sprintf("benchmark name '%v' from %v collides with benchmark from %v", e.Name, e.Descriptor, e.Previous)
}

// DescriptorError ties a structural error to the descriptor being loaded.
type DescriptorError struct {
	Descriptor string
	Err        error
}

func (e *DescriptorError) Error() string {
	return fmt.Sprintf("failed to load benchmark descriptor %v: %v", e.Descriptor, e.Err)
}

func (e *DescriptorError) Unwrap() error { return e.Err }
