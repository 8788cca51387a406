package database

import (
	"context"
	"time"

	"gorm.io/gorm"
)

func NewCrash(taskID, harnessName, engine, artifact, digest string) *Crash {
	return &Crash{
		TaskID:      taskID,
		CreatedAt:   time.Now(),
		HarnessName: harnessName,
		Engine:      engine,
		Artifact:    artifact,
		Digest:      digest,
	}
}

// AddCrash inserts one crash record.
func AddCrash(ctx context.Context, db *gorm.DB, crash *Crash) error {
	if crash == nil {
		return nil
	}
	return db.WithContext(ctx).Create(crash).Error
}

func NewCorpusBundle(taskID, harnessName, path, instance string, entries int) *CorpusBundle {
	return &CorpusBundle{
		TaskID:      taskID,
		CreatedAt:   time.Now(),
		HarnessName: harnessName,
		Path:        path,
		Instance:    instance,
		Entries:     entries,
	}
}

// AddCorpusBundle inserts one corpus bundle record.
func AddCorpusBundle(ctx context.Context, db *gorm.DB, bundle *CorpusBundle) error {
	if bundle == nil {
		return nil
	}
	return db.WithContext(ctx).Create(bundle).Error
}

func NewFuzzRun(taskID, harnessName, engine string, resumed bool, startedAt time.Time, stats Metric) *FuzzRun {
	return &FuzzRun{
		TaskID:      taskID,
		HarnessName: harnessName,
		Engine:      engine,
		Resumed:     resumed,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
		Stats:       stats,
	}
}

// AddFuzzRun inserts one fuzz run record.
func AddFuzzRun(ctx context.Context, db *gorm.DB, run *FuzzRun) error {
	if run == nil {
		return nil
	}
	return db.WithContext(ctx).Create(run).Error
}
