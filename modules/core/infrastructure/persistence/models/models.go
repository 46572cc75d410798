package models

import (
	"database/sql"
	"time"
)

type Tenant struct {
	ID        string
	Name      string
	Domain    sql.NullString
	IsActive  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

type User struct {
	ID        uint
	TenantID  string // UUID stored as string
	FirstName string
	LastName  string
	Email     string
	Role      string
	Password  sql.NullString
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Department struct {
	ID        uint
	TenantID  string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}
