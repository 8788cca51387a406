package database

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Crash is a record in the public.crashes table, one per unique artifact.
type Crash struct {
	ID          int       `gorm:"primaryKey;column:id"`
	TaskID      string    `gorm:"column:task_id;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	HarnessName string    `gorm:"column:harness_name;not null"`
	Engine      string    `gorm:"column:engine;not null"`
	Artifact    string    `gorm:"column:artifact;not null"` // content-addressed local path
	Digest      string    `gorm:"column:digest;not null"`   // md5 of the artifact contents
}

// CorpusBundle is a record in the public.corpus_bundles table, one per
// batch of new queue entries shipped downstream.
type CorpusBundle struct {
	ID          int       `gorm:"primaryKey;column:id"`
	TaskID      string    `gorm:"column:task_id;not null"`
	CreatedAt   time.Time `gorm:"column:created_at;default:now()"`
	HarnessName string    `gorm:"column:harness_name;not null"`
	Path        string    `gorm:"column:path;not null"`
	Instance    string    `gorm:"column:instance"`
	Entries     int       `gorm:"column:entries"`
}

// FuzzRun is a record in the public.fuzz_runs table, one per session, with
// the final statistics snapshot attached.
type FuzzRun struct {
	ID          int       `gorm:"primaryKey;column:id"`
	TaskID      string    `gorm:"column:task_id;not null"`
	HarnessName string    `gorm:"column:harness_name;not null"`
	Engine      string    `gorm:"column:engine;not null"`
	Resumed     bool      `gorm:"column:resumed"`
	StartedAt   time.Time `gorm:"column:started_at"`
	FinishedAt  time.Time `gorm:"column:finished_at"`
	Stats       Metric    `gorm:"column:stats;type:jsonb"`
}

// Metric represents a jsonb column holding loosely typed metrics.
type Metric map[string]any

// Value implements the driver.Valuer interface for the Metric type
func (m Metric) Value() (driver.Value, error) {
	if m == nil {
		return nil, nil
	}
	return json.Marshal(m)
}

// Scan implements the sql.Scanner interface for the Metric type
func (m *Metric) Scan(value any) error {
	if value == nil {
		*m = nil
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}

	return json.Unmarshal(bytes, &m)
}
