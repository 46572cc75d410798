package models

import (
	"database/sql"
	"time"
)

type Profile struct {
	ID             uint
	TenantID       string
	UserID         sql.NullInt64
	FirstName      string
	LastName       string
	Email          string
	EmployeeNumber sql.NullString
	HireDate       sql.NullTime
	DepartmentID   sql.NullInt64
	CustomFields   []byte // JSONB
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
