package types

type CrashMessage struct {
	CrashFile string // path to the crash artifact on local filesystem
	Config    *FuzzConfig
}

type SeedMessage struct {
	SeedFile string
	Config   *FuzzConfig
}

type CorpusBundleMessage struct {
	TaskId     string `json:"task_id"`
	Harness    string `json:"harness"`
	BundlePath string `json:"seeds"`
}

type StatsMessage struct {
	TaskId  string            `json:"task_id"`
	Harness string            `json:"harness"`
	Engine  string            `json:"engine"`
	Stats   map[string]string `json:"stats"`
}
