package models

import (
	"database/sql"
	"time"
)

type ImportJob struct {
	ID               string
	TenantID         string
	CreatedBy        sql.NullInt64
	Status           string
	Config           []byte // JSONB
	Payload          []byte // JSONB, NULL after finalize
	TotalRows        int
	ProcessedRows    int
	SuccessCount     int
	FailureCount     int
	AuthCreatedCount int
	Errors           []byte // JSONB
	Result           []byte // JSONB
	CreatedAt        time.Time
	UpdatedAt        time.Time
	StartedAt        sql.NullTime
	CompletedAt      sql.NullTime
	HeartbeatAt      sql.NullTime
}
