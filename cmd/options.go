package cmd

// Options holds the shared command-line options for the prflow CLI.
type Options struct {
	Query  string // Jira query (JQL) selecting the issues to analyze
	Format string // Output format (text, json, csv)
	Output string // Output file path; empty means stdout

	Bucket     string // Bucket mode (daily, weekly, monthly, n_days)
	BucketDays int    // Span for n_days buckets
	Cutoff     string // Ignore PRs older than this (e.g. "6mo", "90d"); empty = config default

	BatchSize       int  // PRs per GraphQL batch request; 0 = config default
	FirstSourceOnly bool // Stop reference extraction at the first field that yields PRs

	Verbosity int

	// Profiling options
	CPUProfile string // Write CPU profile to file
	MemProfile string // Write memory profile to file
}

// Option is a functional option for configuring Options.
type Option func(*Options)

// NewOptions creates a new Options with defaults and applies any provided options.
func NewOptions(opts ...Option) *Options {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// WithQuery sets the issue query.
func WithQuery(query string) Option {
	return func(o *Options) {
		o.Query = query
	}
}

// WithFormat sets the output format (text, json, csv).
func WithFormat(format string) Option {
	return func(o *Options) {
		o.Format = format
	}
}

// WithOutput sets the output file path.
func WithOutput(path string) Option {
	return func(o *Options) {
		o.Output = path
	}
}

// WithBucket sets the bucket mode (daily, weekly, monthly, n_days).
func WithBucket(mode string) Option {
	return func(o *Options) {
		o.Bucket = mode
	}
}

// WithBucketDays sets the span for n_days buckets.
func WithBucketDays(days int) Option {
	return func(o *Options) {
		o.BucketDays = days
	}
}

// WithCutoff sets the age cutoff (e.g. "6mo", "90d").
func WithCutoff(cutoff string) Option {
	return func(o *Options) {
		o.Cutoff = cutoff
	}
}

// WithBatchSize sets the number of PRs per GraphQL batch request.
func WithBatchSize(n int) Option {
	return func(o *Options) {
		o.BatchSize = n
	}
}

// WithFirstSourceOnly stops reference extraction at the first productive field.
func WithFirstSourceOnly(v bool) Option {
	return func(o *Options) {
		o.FirstSourceOnly = v
	}
}

// WithVerbosity sets the verbosity level.
func WithVerbosity(v int) Option {
	return func(o *Options) {
		o.Verbosity = v
	}
}

// WithCPUProfile sets the CPU profile output file.
func WithCPUProfile(path string) Option {
	return func(o *Options) {
		o.CPUProfile = path
	}
}

// WithMemProfile sets the memory profile output file.
func WithMemProfile(path string) Option {
	return func(o *Options) {
		o.MemProfile = path
	}
}
