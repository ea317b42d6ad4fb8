package main

import (
	"strconv"
)

type AttributeKind int

const (
	AttributeString AttributeKind = iota
	AttributeNumber
	AttributeBool
)

// Attribute is the value type passed to query loading: a string, a number or
// a boolean, nothing else.
type Attribute struct {
	kind   AttributeKind
	text   string
	number float64
	flag   bool
}

func StringAttribute(value string) Attribute  { return Attribute{kind: AttributeString, text: value} }
func NumberAttribute(value float64) Attribute { return Attribute{kind: AttributeNumber, number: value} }
func BoolAttribute(value bool) Attribute      { return Attribute{kind: AttributeBool, flag: value} }

func (a Attribute) Kind() AttributeKind { return a.kind }

func (a Attribute) String() string {
	switch a.kind {
	case AttributeNumber:
		return strconv.FormatFloat(a.number, 'f', -1, 64)
	case AttributeBool:
		return strconv.FormatBool(a.flag)
	}
	return a.text
}

type Attributes map[string]Attribute

func (a Attributes) Lookup(key string) (string, bool) {
	attribute, ok := a[key]
	if !ok {
		return "", false
	}
	return attribute.String(), true
}

func BindingAttributes(binding VariableBinding) Attributes {
	attributes := make(Attributes, len(binding))
	for name, value := range binding {
		attributes[name] = StringAttribute(value)
	}
	return attributes
}
