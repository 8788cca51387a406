package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"dsfuzz/internal/types"
)

const (
	DefaultMemLimitMB   = 50
	DefaultMaxInputSize = 8192
)

// LoadFuzzJob reads the YAML job file named by the app config and returns
// the per-run fuzzing configuration. Only shape problems are reported here;
// path validation belongs to the engine adapter and the session layout.
func LoadFuzzJob(appConfig *AppConfig) (*types.FuzzConfig, error) {
	content, err := os.ReadFile(appConfig.JobFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}

	job := &types.FuzzConfig{
		Engine:       "libfuzzer",
		MemLimitMB:   DefaultMemLimitMB,
		MaxInputSize: DefaultMaxInputSize,
	}
	if err := yaml.Unmarshal(content, job); err != nil {
		return nil, fmt.Errorf("failed to parse job file: %w", err)
	}

	if job.Harness == "" {
		return nil, fmt.Errorf("job file %s: harness is required", appConfig.JobFile)
	}
	if job.OutputDir == "" {
		return nil, fmt.Errorf("job file %s: output_dir is required", appConfig.JobFile)
	}
	if job.MemLimitMB < 0 {
		return nil, fmt.Errorf("job file %s: mem_limit_mb must be >= 0", appConfig.JobFile)
	}
	if job.MaxInputSize < 0 {
		return nil, fmt.Errorf("job file %s: max_input_size must be >= 0", appConfig.JobFile)
	}
	if job.TaskID == "" {
		job.TaskID = "local"
	}

	return job, nil
}
