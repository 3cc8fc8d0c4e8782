package models

import (
	"time"

	"gorm.io/gorm"
)

type RenderJobStatus string

const (
	JobPending RenderJobStatus = "PENDING"
	JobRunning RenderJobStatus = "RUNNING"
	JobDone    RenderJobStatus = "DONE"
	JobFailed  RenderJobStatus = "FAILED"
)

// RenderJob is one unit of work on the durable assignment-rendering queue.
// Payload is the full job description (claim and passenger snapshots,
// options, signature source) serialized as JSON.
type RenderJob struct {
	gorm.Model
	ID          string          `gorm:"primaryKey"`
	Status      RenderJobStatus `gorm:"not null;default:'PENDING';index"`
	Payload     []byte          `gorm:"type:bytea;not null"`
	Attempts    int             `gorm:"not null;default:0"`
	MaxAttempts int             `gorm:"not null;default:5"`
	NextRunAt   time.Time       `gorm:"index"`
	LastError   string
}
