package main

import (
	"fmt"
	"strings"

	"github.com/spaolacci/murmur3"
)

const digestLength = 8

type NamingPolicy struct {
	Prefix    string `mapstructure:"prefix"`
	Separator string `mapstructure:"separator"`
	MaxLength int    `mapstructure:"max-length"`
}

func DefaultNamingPolicy() NamingPolicy {
	return NamingPolicy{Separator: "_", MaxLength: 200}
}

type NameGenerator struct {
	policy NamingPolicy
}

func NewNameGenerator(policy NamingPolicy) *NameGenerator {
	if policy.Separator == "" {
		policy.Separator = "_"
	}
	return &NameGenerator{policy: policy}
}

func nameSafe(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '=' || r == '-' || r == '/'
}

func sanitize(text string) (string, bool) {
	changed := false
	sanitized := strings.Map(func(r rune) rune {
		if nameSafe(r) {
			return r
		}
		changed = true
		return '_'
	}, text)
	return sanitized, changed
}

func digest(text string) string {
	return fmt.Sprintf("%08x", murmur3.Sum32([]byte(text)))
}

func (g *NameGenerator) ambiguous(part string) bool {
	return strings.Contains(part, g.policy.Separator) || strings.Contains(part, "=")
}

// Generate builds the benchmark name from the descriptor name and variables,
// sorted by variable name. Any lossy step (character replacement, variable
// text containing the separators, truncation) appends a digest of the exact
// input so that distinct bindings keep distinct names.
func (g *NameGenerator) Generate(base string, binding VariableBinding) string {
	var raw strings.Builder
	raw.WriteString(g.policy.Prefix)
	raw.WriteString(base)
	lossy := false
	for _, name := range binding.Names() {
		lossy = lossy || g.ambiguous(name) || g.ambiguous(binding[name])
		raw.WriteString(g.policy.Separator)
		raw.WriteString(name)
		raw.WriteString("=")
		raw.WriteString(binding[name])
	}
	name, changed := sanitize(raw.String())
	lossy = lossy || changed
	if !lossy && (g.policy.MaxLength <= 0 || len(name) <= g.policy.MaxLength) {
		return name
	}

	// the digest must see exact boundaries, not the joined text
	var canonical strings.Builder
	canonical.WriteString(base)
	canonical.WriteByte(0)
	canonical.WriteString(binding.canonical())
	suffix := g.policy.Separator + digest(canonical.String())

	if g.policy.MaxLength > 0 && len(name)+len(suffix) > g.policy.MaxLength {
		name = name[:max(0, g.policy.MaxLength-len(suffix))]
	}
	return name + suffix
}

func (g *NameGenerator) Unique(name string, sequenceID string) string {
	if sequenceID == "" {
		return name
	}
	sequence, _ := sanitize(sequenceID)
	return name + g.policy.Separator + sequence
}
