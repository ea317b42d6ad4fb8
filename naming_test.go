package main

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/require"
)

func TestGenerateName(t *testing.T) {
	names := NewNameGenerator(DefaultNamingPolicy())
	require.Equal(t, "simple-benchmark", names.Generate("simple-benchmark", VariableBinding{}))
	require.Equal(t, "tpch/q1", names.Generate("tpch/q1", nil))
	require.Equal(t,
		"multi-variables-benchmark_format=orc_size=1GB",
		names.Generate("multi-variables-benchmark", VariableBinding{"size": "1GB", "format": "orc"}),
	)
}

func TestGenerateNameIsStable(t *testing.T) {
	names := NewNameGenerator(DefaultNamingPolicy())
	binding := VariableBinding{"size": "1 GB", "format": "orc"}
	first := names.Generate("bench", binding)
	require.Equal(t, first, names.Generate("bench", VariableBinding{"format": "orc", "size": "1 GB"}))
	require.Equal(t, first, NewNameGenerator(DefaultNamingPolicy()).Generate("bench", binding))
}

func TestGenerateNameDigestsLossyInput(t *testing.T) {
	names := NewNameGenerator(DefaultNamingPolicy())
	spaced := names.Generate("bench", VariableBinding{"size": "1 GB"})
	underscored := names.Generate("bench", VariableBinding{"size": "1_GB"})
	require.NotEqual(t, spaced, underscored)
	require.True(t, strings.HasPrefix(spaced, "bench_size=1_GB_"))
	require.Len(t, spaced, len("bench_size=1_GB_")+digestLength)

	joined := names.Generate("bench", VariableBinding{"a": "1_b=2"})
	split := names.Generate("bench", VariableBinding{"a": "1", "b": "2"})
	require.NotEqual(t, joined, split)
	require.Equal(t, "bench_a=1_b=2", split)
}

func TestGenerateNameTruncates(t *testing.T) {
	names := NewNameGenerator(NamingPolicy{Separator: "_", MaxLength: 32})
	long := names.Generate("bench", VariableBinding{"query": strings.Repeat("x", 100)})
	other := names.Generate("bench", VariableBinding{"query": strings.Repeat("x", 99) + "y"})
	require.Len(t, long, 32)
	require.Len(t, other, 32)
	require.NotEqual(t, long, other)
}

func TestGenerateNamePrefix(t *testing.T) {
	names := NewNameGenerator(NamingPolicy{Prefix: "nightly-", Separator: "__"})
	require.Equal(t, "nightly-bench__size=1GB", names.Generate("bench", VariableBinding{"size": "1GB"}))
}

func TestUniqueName(t *testing.T) {
	names := NewNameGenerator(DefaultNamingPolicy())
	require.Equal(t, "bench_seq-1", names.Unique("bench", "seq-1"))
	require.Equal(t, "bench_2024_01", names.Unique("bench", "2024 01"))
	require.Equal(t, "bench", names.Unique("bench", ""))
}

func TestProperty_NamesAreInjective(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)
	names := NewNameGenerator(DefaultNamingPolicy())

	properties.Property("different bindings give different names", prop.ForAll(
		func(first, second string) bool {
			if first == second {
				return true
			}
			return names.Generate("bench", VariableBinding{"v": first}) != names.Generate("bench", VariableBinding{"v": second})
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.Property("names only contain safe characters", prop.ForAll(
		func(value string) bool {
			for _, r := range names.Generate("bench", VariableBinding{"v": value}) {
				if !nameSafe(r) {
					return false
				}
			}
			return true
		},
		gen.AnyString(),
	))

	properties.TestingRun(t)
}
