package main

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
)

type LoadMode int

const (
	FailFast LoadMode = iota
	CollectAndContinue
)

func (m LoadMode) String() string {
	if m == CollectAndContinue {
		return "continue"
	}
	return "fail-fast"
}

func ParseLoadMode(value string) (LoadMode, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "fail-fast", "failfast":
		return FailFast, nil
	case "continue", "collect-and-continue":
		return CollectAndContinue, nil
	}
	return FailFast, fmt.Errorf("unknown load mode '%v', expected fail-fast or continue", value)
}

type LoaderConfig struct {
	ActiveBenchmarks []string
	ActiveVariables  map[string][]string
	Mode             LoadMode
}

type LoadResult struct {
	Benchmarks []*Benchmark
	Skipped    []*DescriptorError
}

type BenchmarkLoader struct {
	config      LoaderConfig
	descriptors Source
	queries     QueryLoader
	names       *NameGenerator
}

func NewBenchmarkLoader(config LoaderConfig, descriptors Source, queries QueryLoader, names *NameGenerator) *BenchmarkLoader {
	return &BenchmarkLoader{config: config, descriptors: descriptors, queries: queries, names: names}
}

// LoadBenchmarks expands every active descriptor. Benchmarks keep descriptor
// order first and variable enumeration order second.
func (l *BenchmarkLoader) LoadBenchmarks(ctx context.Context, sequenceID string) (*LoadResult, error) {
	active, err := l.activeDescriptors(ctx)
	if err != nil {
		return nil, err
	}
	Logger.Infof("loading %v benchmark descriptors from %v in %v mode", len(active), l.descriptors.Name(), l.config.Mode)

	result := &LoadResult{Benchmarks: make([]*Benchmark, 0), Skipped: make([]*DescriptorError, 0)}
	owners := make(map[string]string)
	for _, name := range active {
		benchmarks, err := l.loadDescriptor(ctx, name, sequenceID)
		if err == nil {
			err = checkNames(owners, name, benchmarks)
		}
		if err != nil {
			failure := &DescriptorError{Descriptor: name, Err: err}
			if l.config.Mode == FailFast {
				return nil, failure
			}
			Logger.Warnf("skip benchmark descriptor %v: %v", name, err)
			result.Skipped = append(result.Skipped, failure)
			continue
		}
		for _, benchmark := range benchmarks {
			owners[benchmark.Name] = name
		}
		result.Benchmarks = append(result.Benchmarks, benchmarks...)
	}
	Logger.Infof("loaded %v benchmarks, skipped %v descriptors", len(result.Benchmarks), len(result.Skipped))
	return result, nil
}

func checkNames(owners map[string]string, descriptor string, benchmarks []*Benchmark) error {
	local := make(map[string]bool, len(benchmarks))
	for _, benchmark := range benchmarks {
		if previous, ok := owners[benchmark.Name]; ok {
			return &DuplicateBenchmarkNameError{Name: benchmark.Name, Descriptor: descriptor, Previous: previous}
		}
		if local[benchmark.Name] {
			return &DuplicateBenchmarkNameError{Name: benchmark.Name, Descriptor: descriptor, Previous: descriptor}
		}
		local[benchmark.Name] = true
	}
	return nil
}

func (l *BenchmarkLoader) activeDescriptors(ctx context.Context) ([]string, error) {
	names := make([]string, 0)
	if len(l.config.ActiveBenchmarks) > 0 {
		for _, name := range l.config.ActiveBenchmarks {
			name = DescriptorName(StripCompression(strings.TrimSpace(name)))
			if name != "" && !slices.Contains(names, name) {
				names = append(names, name)
			}
		}
		return names, nil
	}

	files, err := l.descriptors.List(ctx, "")
	if err != nil {
		return nil, fmt.Errorf("failed to list benchmark descriptors in %v: %w", l.descriptors.Name(), err)
	}
	for _, file := range files {
		file = StripCompression(file)
		if !isDescriptorFile(file) {
			continue
		}
		if name := DescriptorName(file); !slices.Contains(names, name) {
			names = append(names, name)
		}
	}
	return names, nil
}

func (l *BenchmarkLoader) readDescriptor(ctx context.Context, name string) (*Descriptor, error) {
	for _, extension := range descriptorExtensions {
		data, file, err := readCandidates(ctx, l.descriptors, name+extension)
		if isNotExist(err) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read descriptor %v: %w", file, err)
		}
		return ParseDescriptor(name, data)
	}
	return nil, fmt.Errorf("descriptor %v not found in %v", name, l.descriptors.Name())
}

func (l *BenchmarkLoader) loadDescriptor(ctx context.Context, name string, sequenceID string) ([]*Benchmark, error) {
	descriptor, err := l.readDescriptor(ctx, name)
	if err != nil {
		return nil, err
	}

	bindings, err := ExpandSets(descriptor.VariableSets)
	if err != nil {
		var invalid *InvalidVariableError
		if errors.As(err, &invalid) {
			invalid.Descriptor = descriptor.Name
		}
		return nil, err
	}
	expanded := len(bindings)
	bindings = FilterBindings(bindings, l.config.ActiveVariables)
	if len(bindings) < expanded {
		Logger.Infof("descriptor %v: %v of %v variable combinations are active", descriptor.Name, len(bindings), expanded)
	}

	benchmarks := make([]*Benchmark, 0, len(bindings))
	for _, binding := range bindings {
		benchmark, err := l.buildBenchmark(ctx, descriptor, binding, sequenceID)
		if err != nil {
			return nil, err
		}
		benchmarks = append(benchmarks, benchmark)
	}
	return benchmarks, nil
}

func (l *BenchmarkLoader) buildBenchmark(ctx context.Context, descriptor *Descriptor, binding VariableBinding, sequenceID string) (*Benchmark, error) {
	lookup := func(name string) (string, bool) {
		value, ok := binding[name]
		return value, ok
	}
	var failed error
	resolve := func(field string, values ...string) []string {
		resolved := make([]string, 0, len(values))
		for _, value := range values {
			text, err := substitute(value, lookup)
			if err != nil && failed == nil {
				failed = &InvalidDescriptorError{Descriptor: descriptor.Name, Field: field, Reason: err.Error()}
			}
			resolved = append(resolved, text)
		}
		return resolved
	}

	name := l.names.Generate(descriptor.Name, binding)
	benchmark := &Benchmark{
		Name:                  name,
		UniqueName:            l.names.Unique(name, sequenceID),
		SequenceID:            sequenceID,
		Descriptor:            descriptor.Name,
		DataSource:            resolve(fieldDataSource, descriptor.DataSource)[0],
		Runs:                  descriptor.Runs,
		PrewarmRuns:           descriptor.PrewarmRuns,
		Concurrency:           descriptor.Concurrency,
		BeforeBenchmarkMacros: resolve(fieldBeforeBenchmark, descriptor.BeforeBenchmarkMacros...),
		AfterBenchmarkMacros:  resolve(fieldAfterBenchmark, descriptor.AfterBenchmarkMacros...),
		BeforeExecutionMacros: resolve(fieldBeforeExecution, descriptor.BeforeExecutionMacros...),
		AfterExecutionMacros:  resolve(fieldAfterExecution, descriptor.AfterExecutionMacros...),
		Variables:             map[string]string(binding),
	}
	queryNames := resolve(fieldQueryNames, descriptor.QueryNames...)
	if failed != nil {
		return nil, failed
	}

	attributes := benchmark.Attributes()
	benchmark.Queries = make([]*Query, 0, len(queryNames))
	for _, queryName := range queryNames {
		query, err := l.queries.LoadFromFile(ctx, queryName, attributes)
		if err != nil {
			var unresolved *UnresolvedQueryError
			if errors.As(err, &unresolved) && unresolved.Descriptor == "" {
				unresolved.Descriptor = descriptor.Name
			}
			return nil, fmt.Errorf("failed to load query %v: %w", queryName, err)
		}
		if slices.Contains(benchmark.QueryNames(), query.Name) {
			return nil, &InvalidDescriptorError{Descriptor: descriptor.Name, Field: fieldQueryNames, Reason: fmt.Sprintf("query '%v' resolved more than once", query.Name)}
		}
		benchmark.Queries = append(benchmark.Queries, query)
	}
	return benchmark, nil
}
