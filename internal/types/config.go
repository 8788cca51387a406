package types

// FuzzerArg is one passthrough flag for the engine. A nil Value means the
// flag is emitted bare, without "=value". Order is preserved as given.
type FuzzerArg struct {
	Key   string  `yaml:"key" json:"key"`
	Value *string `yaml:"value,omitempty" json:"value,omitempty"`
}

// FuzzConfig is the per-run configuration of one fuzzing session.
// It is built once from the job file and never mutated afterwards.
type FuzzConfig struct {
	TaskID  string `yaml:"task_id" json:"task_id"`
	Engine  string `yaml:"engine" json:"engine"`   // engine adapter name, e.g. "libfuzzer"
	Harness string `yaml:"harness" json:"harness"` // path to the instrumented harness binary

	OutputDir     string `yaml:"output_dir" json:"output_dir"`
	InputSeeds    string `yaml:"input_seeds,omitempty" json:"input_seeds,omitempty"`
	Dictionary    string `yaml:"dictionary,omitempty" json:"dictionary,omitempty"`
	MemLimitMB    int    `yaml:"mem_limit_mb" json:"mem_limit_mb"`
	MaxInputSize  int    `yaml:"max_input_size" json:"max_input_size"`
	ExecTimeoutMS int    `yaml:"exec_timeout_ms,omitempty" json:"exec_timeout_ms,omitempty"` // 0 means unset
	PostStats     bool   `yaml:"print_final_stats,omitempty" json:"print_final_stats,omitempty"`
	Blackbox      bool   `yaml:"blackbox,omitempty" json:"blackbox,omitempty"`

	FuzzerArgs []FuzzerArg `yaml:"fuzzer_args,omitempty" json:"fuzzer_args,omitempty"`
}
