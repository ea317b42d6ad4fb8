package main

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/require"
)

const (
	simpleBenchmark = `
datasource: foo
query-names: q1, q2, 1, 2
runs: 3
prewarm-runs: 2
before-benchmark: no-op, no-op2
after-benchmark: no-op2
`
	concurrentBenchmark = `
datasource: foo
query-names: q1, q2, 1, 2
runs: 10
concurrency: 20
`
	multiVariablesBenchmark = `
datasource: foo
query-names: q1, q2, 1, 2
runs: 3
variables:
  1:
    size: 1GB, 2GB
    format: txt, orc
  2:
    size: 10GB
    format: parquet
`
)

// staticQueries resolves every name to a one-statement query.
type staticQueries struct {
	missing map[string]bool
	calls   []string
	seen    []Attributes
}

func (q *staticQueries) LoadFromFile(_ context.Context, name string, attributes Attributes) (*Query, error) {
	q.calls = append(q.calls, name)
	q.seen = append(q.seen, attributes)
	if q.missing[name] {
		return nil, &UnresolvedQueryError{Query: name, Err: errors.New("missing")}
	}
	return NewQuery(name, nil, []string{"select 1"}), nil
}

func unitBenchmarks(extra map[string]string) *DirSource {
	files := fstest.MapFS{
		"simple-benchmark.yaml":          {Data: []byte(simpleBenchmark)},
		"concurrent-benchmark.yaml":      {Data: []byte(concurrentBenchmark)},
		"multi-variables-benchmark.yaml": {Data: []byte(multiVariablesBenchmark)},
	}
	for name, content := range extra {
		files[name] = &fstest.MapFile{Data: []byte(content)}
	}
	return NewDirSource("unit-benchmarks", files)
}

func newTestLoader(config LoaderConfig, source Source, queries QueryLoader) *BenchmarkLoader {
	return NewBenchmarkLoader(config, source, queries, NewNameGenerator(DefaultNamingPolicy()))
}

func loadBenchmarkWithName(t *testing.T, name string) []*Benchmark {
	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{name}}, unitBenchmarks(nil), &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "sequenceId")
	require.Nil(t, err)
	require.Empty(t, result.Skipped)
	return result.Benchmarks
}

func findBenchmark(t *testing.T, benchmarks []*Benchmark, variables map[string]string) *Benchmark {
	for _, benchmark := range benchmarks {
		matches := true
		for name, value := range variables {
			if benchmark.Variables[name] != value {
				matches = false
			}
		}
		if matches {
			return benchmark
		}
	}
	require.Fail(t, "benchmark not found", "variables %v", variables)
	return nil
}

func TestLoadSimpleBenchmark(t *testing.T) {
	benchmarks := loadBenchmarkWithName(t, "simple-benchmark")
	require.Len(t, benchmarks, 1)

	benchmark := benchmarks[0]
	require.Equal(t, []string{"q1", "q2", "1", "2"}, benchmark.QueryNames())
	require.Equal(t, "foo", benchmark.DataSource)
	require.Equal(t, 3, benchmark.Runs)
	require.Equal(t, 1, benchmark.Concurrency)
	require.Equal(t, []string{"no-op", "no-op2"}, benchmark.BeforeBenchmarkMacros)
	require.Equal(t, []string{"no-op2"}, benchmark.AfterBenchmarkMacros)
	require.Equal(t, 2, benchmark.PrewarmRuns)
	require.Equal(t, "simple-benchmark", benchmark.Name)
	require.Equal(t, "simple-benchmark_sequenceId", benchmark.UniqueName)
	require.Equal(t, "sequenceId", benchmark.SequenceID)
	require.False(t, benchmark.Parametric())
}

func TestLoadConcurrentBenchmark(t *testing.T) {
	benchmarks := loadBenchmarkWithName(t, "concurrent-benchmark")
	require.Len(t, benchmarks, 1)

	benchmark := benchmarks[0]
	require.Equal(t, "foo", benchmark.DataSource)
	require.Equal(t, []string{"q1", "q2", "1", "2"}, benchmark.QueryNames())
	require.Equal(t, 10, benchmark.Runs)
	require.Equal(t, 20, benchmark.Concurrency)
	require.Equal(t, 0, benchmark.PrewarmRuns)
}

func TestLoadBenchmarkWithVariables(t *testing.T) {
	benchmarks := loadBenchmarkWithName(t, "multi-variables-benchmark")
	require.Len(t, benchmarks, 5)

	for _, pair := range [][2]string{{"1GB", "txt"}, {"1GB", "orc"}, {"2GB", "txt"}, {"2GB", "orc"}, {"10GB", "parquet"}} {
		benchmark := findBenchmark(t, benchmarks, map[string]string{"size": pair[0], "format": pair[1]})
		require.Equal(t, map[string]string{"size": pair[0], "format": pair[1]}, benchmark.Variables)
		require.Equal(t, "foo", benchmark.DataSource)
		require.Equal(t, []string{"q1", "q2", "1", "2"}, benchmark.QueryNames())
		require.Equal(t, fmt.Sprintf("multi-variables-benchmark_format=%v_size=%v", pair[1], pair[0]), benchmark.Name)
	}
	require.Equal(t, map[string]string{"size": "1GB", "format": "txt"}, benchmarks[0].Variables)
	require.Equal(t, map[string]string{"size": "10GB", "format": "parquet"}, benchmarks[4].Variables)
}

func TestLoadBenchmarksKeepsActiveOrder(t *testing.T) {
	loader := newTestLoader(LoaderConfig{
		ActiveBenchmarks: []string{"concurrent-benchmark", "simple-benchmark", "concurrent-benchmark"},
	}, unitBenchmarks(nil), &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 2)
	require.Equal(t, "concurrent-benchmark", result.Benchmarks[0].Name)
	require.Equal(t, "simple-benchmark", result.Benchmarks[1].Name)
}

func TestLoadBenchmarksAllDescriptors(t *testing.T) {
	source := unitBenchmarks(map[string]string{
		"nested/extra.yml": "datasource: bar\nquery-names: q1\nruns: 1",
		"README.md":        "not a descriptor",
	})
	loader := newTestLoader(LoaderConfig{}, source, &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)

	descriptors := make([]string, 0)
	for _, benchmark := range result.Benchmarks {
		if len(descriptors) == 0 || descriptors[len(descriptors)-1] != benchmark.Descriptor {
			descriptors = append(descriptors, benchmark.Descriptor)
		}
	}
	require.Equal(t, []string{"concurrent-benchmark", "multi-variables-benchmark", "nested/extra", "simple-benchmark"}, descriptors)
	require.Len(t, result.Benchmarks, 8)
}

func TestLoadBenchmarksIsIdempotent(t *testing.T) {
	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"multi-variables-benchmark", "simple-benchmark"}}, unitBenchmarks(nil), &staticQueries{})
	first, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	second, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Equal(t, first, second)
}

func TestLoadBenchmarksActiveVariables(t *testing.T) {
	loader := newTestLoader(LoaderConfig{
		ActiveBenchmarks: []string{"multi-variables-benchmark", "simple-benchmark"},
		ActiveVariables:  map[string][]string{"format": {"orc"}},
	}, unitBenchmarks(nil), &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 3)
	require.Equal(t, map[string]string{"size": "1GB", "format": "orc"}, result.Benchmarks[0].Variables)
	require.Equal(t, map[string]string{"size": "2GB", "format": "orc"}, result.Benchmarks[1].Variables)
	require.Equal(t, "simple-benchmark", result.Benchmarks[2].Name)
}

func TestLoadBenchmarksFailFast(t *testing.T) {
	source := unitBenchmarks(map[string]string{"broken.yaml": "datasource: foo\nruns: 1"})
	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"simple-benchmark", "broken", "concurrent-benchmark"}}, source, &staticQueries{})
	_, err := loader.LoadBenchmarks(context.Background(), "s")

	var failure *DescriptorError
	require.True(t, errors.As(err, &failure))
	require.Equal(t, "broken", failure.Descriptor)
	var invalid *InvalidDescriptorError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, fieldQueryNames, invalid.Field)
}

func TestLoadBenchmarksCollectAndContinue(t *testing.T) {
	source := unitBenchmarks(map[string]string{
		"broken.yaml":   "datasource: foo\nruns: 1",
		"bad-vars.yaml": "datasource: foo\nquery-names: q1\nruns: 1\nvariables:\n  size: 1GB, 1GB",
		"no-query.yaml": "datasource: foo\nquery-names: q1, missing\nruns: 1",
	})
	loader := newTestLoader(LoaderConfig{
		ActiveBenchmarks: []string{"simple-benchmark", "broken", "bad-vars", "no-query", "absent", "concurrent-benchmark"},
		Mode:             CollectAndContinue,
	}, source, &staticQueries{missing: map[string]bool{"missing": true}})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 2)
	require.Equal(t, "simple-benchmark", result.Benchmarks[0].Name)
	require.Equal(t, "concurrent-benchmark", result.Benchmarks[1].Name)

	require.Len(t, result.Skipped, 4)
	require.Equal(t, "broken", result.Skipped[0].Descriptor)

	var variable *InvalidVariableError
	require.True(t, errors.As(result.Skipped[1], &variable))
	require.Equal(t, "bad-vars", variable.Descriptor)
	require.Equal(t, "size", variable.Variable)

	var unresolved *UnresolvedQueryError
	require.True(t, errors.As(result.Skipped[2], &unresolved))
	require.Equal(t, "missing", unresolved.Query)
	require.Equal(t, "no-query", unresolved.Descriptor)

	require.Equal(t, "absent", result.Skipped[3].Descriptor)
}

func TestLoadBenchmarksDuplicateNames(t *testing.T) {
	source := unitBenchmarks(map[string]string{
		"pair.yaml":          "datasource: foo\nquery-names: q1\nruns: 1\nvariables:\n  size: 1GB, 2GB\n",
		"pair_size=1GB.yaml": "datasource: bar\nquery-names: q1\nruns: 1\n",
		"clash.yaml":         "datasource: foo\nquery-names: q1\nruns: 1\nvariables:\n  a: x_b=y\n",
	})

	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"pair", "pair_size=1GB"}}, source, &staticQueries{})
	_, err := loader.LoadBenchmarks(context.Background(), "s")
	var duplicate *DuplicateBenchmarkNameError
	require.True(t, errors.As(err, &duplicate), "unexpected error: %v", err)
	require.Equal(t, "pair_size=1GB", duplicate.Name)
	require.Equal(t, "pair", duplicate.Previous)
	require.Equal(t, "pair_size=1GB", duplicate.Descriptor)

	loader = newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"pair", "pair_size=1GB"}, Mode: CollectAndContinue}, source, &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 2)
	require.Len(t, result.Skipped, 1)

	loader = newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"clash"}}, source, &staticQueries{})
	result, err = loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 1)
	require.NotEqual(t, "clash_a=x_b=y", result.Benchmarks[0].Name)
}

func TestLoadBenchmarksDescriptorExtensions(t *testing.T) {
	loader := newTestLoader(LoaderConfig{
		ActiveBenchmarks: []string{"simple-benchmark", "simple-benchmark.yaml", "short"},
	}, unitBenchmarks(map[string]string{"short.yml": "datasource: foo\nquery-names: q1\nruns: 1"}), &staticQueries{})
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 2)
	require.Equal(t, "short", result.Benchmarks[1].Descriptor)
}

func TestLoadBenchmarksTemplatedFields(t *testing.T) {
	source := unitBenchmarks(map[string]string{
		"templated.yaml": `
datasource: presto-${size}
query-names: ${format}/q1, q2
runs: 1
before-benchmark: create-${format}
variables:
  size: 1GB
  format: orc, txt
`,
		"unbound.yaml": "datasource: presto-${schema}\nquery-names: q1\nruns: 1",
	})
	queries := &staticQueries{}
	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"templated"}}, source, queries)
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 2)

	benchmark := result.Benchmarks[0]
	require.Equal(t, "presto-1GB", benchmark.DataSource)
	require.Equal(t, []string{"orc/q1", "q2"}, benchmark.QueryNames())
	require.Equal(t, []string{"create-orc"}, benchmark.BeforeBenchmarkMacros)
	require.Equal(t, []string{"txt/q1", "q2"}, result.Benchmarks[1].QueryNames())

	require.Equal(t, []string{"orc/q1", "q2", "txt/q1", "q2"}, queries.calls)
	attributes := queries.seen[0]
	require.Equal(t, "1GB", attributes["size"].String())
	require.Equal(t, "presto-1GB", attributes["data-source"].String())
	require.Equal(t, AttributeNumber, attributes["runs"].Kind())
	require.Equal(t, "true", attributes["parametric"].String())
	require.Equal(t, "s", attributes["sequence-id"].String())

	loader = newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"unbound"}}, source, queries)
	_, err = loader.LoadBenchmarks(context.Background(), "s")
	var invalid *InvalidDescriptorError
	require.True(t, errors.As(err, &invalid))
	require.Equal(t, fieldDataSource, invalid.Field)
	var unbound *UnboundPlaceholderError
	require.False(t, errors.As(err, &unbound))
}

func TestLoadBenchmarksWithFileQueries(t *testing.T) {
	descriptors := unitBenchmarks(nil)
	queries := NewFileQueryLoader(NewDirSource("unit-sql", fstest.MapFS{
		"q1.sql": {Data: []byte("-- type: scan\nselect 1")},
		"q2.sql": {Data: []byte("select 2; select 3")},
		"1.sql":  {Data: []byte("select 4")},
		"2.sql":  {Data: []byte("select 5")},
	}))
	loader := newTestLoader(LoaderConfig{ActiveBenchmarks: []string{"multi-variables-benchmark"}}, descriptors, queries)
	result, err := loader.LoadBenchmarks(context.Background(), "s")
	require.Nil(t, err)
	require.Len(t, result.Benchmarks, 5)
	require.Same(t, result.Benchmarks[0].Queries[0], result.Benchmarks[4].Queries[0])
	require.Equal(t, []string{"select 2", "select 3"}, result.Benchmarks[0].Queries[1].SQLTemplates())
}
