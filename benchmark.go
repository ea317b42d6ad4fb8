package main

type Benchmark struct {
	Name                  string
	UniqueName            string
	SequenceID            string
	Descriptor            string
	DataSource            string
	Queries               []*Query
	Runs                  int
	PrewarmRuns           int
	Concurrency           int
	BeforeBenchmarkMacros []string
	AfterBenchmarkMacros  []string
	BeforeExecutionMacros []string
	AfterExecutionMacros  []string
	Variables             map[string]string
}

func (b *Benchmark) QueryNames() []string {
	names := make([]string, 0, len(b.Queries))
	for _, query := range b.Queries {
		names = append(names, query.Name)
	}
	return names
}

func (b *Benchmark) Parametric() bool { return len(b.Variables) > 0 }

// Attributes is the context handed to query loading and rendering for this
// benchmark: its variables plus the structural fields.
func (b *Benchmark) Attributes() Attributes {
	attributes := BindingAttributes(b.Variables)
	attributes["data-source"] = StringAttribute(b.DataSource)
	attributes["runs"] = NumberAttribute(float64(b.Runs))
	attributes["prewarm-runs"] = NumberAttribute(float64(b.PrewarmRuns))
	attributes["concurrency"] = NumberAttribute(float64(b.Concurrency))
	attributes["parametric"] = BoolAttribute(b.Parametric())
	if b.SequenceID != "" {
		attributes["sequence-id"] = StringAttribute(b.SequenceID)
	}
	return attributes
}
