package persistence

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/tenant"
	"github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence/models"
)

func ToDomainUser(dbUser *models.User) (user.User, error) {
	tenantID, err := uuid.Parse(dbUser.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant id %q: %w", dbUser.TenantID, err)
	}

	email, err := user.NewEmail(dbUser.Email)
	if err != nil {
		return nil, fmt.Errorf("stored email %q is invalid: %w", dbUser.Email, err)
	}

	role, err := user.NewRole(dbUser.Role)
	if err != nil {
		return nil, fmt.Errorf("stored role %q is invalid: %w", dbUser.Role, err)
	}

	return user.New(
		dbUser.FirstName,
		dbUser.LastName,
		email,
		role,
		user.WithID(dbUser.ID),
		user.WithTenantID(tenantID),
		user.WithPasswordHash(dbUser.Password.String),
		user.WithCreatedAt(dbUser.CreatedAt),
		user.WithUpdatedAt(dbUser.UpdatedAt),
	), nil
}

func toDBUser(entity user.User) *models.User {
	return &models.User{
		ID:        entity.ID(),
		TenantID:  entity.TenantID().String(),
		FirstName: entity.FirstName(),
		LastName:  entity.LastName(),
		Email:     entity.Email().String(),
		Role:      string(entity.Role()),
		Password:  sql.NullString{String: entity.PasswordHash(), Valid: entity.PasswordHash() != ""},
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
}

func toDomainTenant(dbTenant *models.Tenant) (*tenant.Tenant, error) {
	id, err := uuid.Parse(dbTenant.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant id %q: %w", dbTenant.ID, err)
	}
	return &tenant.Tenant{
		ID:        id,
		Name:      dbTenant.Name,
		Domain:    dbTenant.Domain.String,
		IsActive:  dbTenant.IsActive,
		CreatedAt: dbTenant.CreatedAt,
		UpdatedAt: dbTenant.UpdatedAt,
	}, nil
}

func toDomainDepartment(dbDept *models.Department) (*department.Department, error) {
	tenantID, err := uuid.Parse(dbDept.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant id %q: %w", dbDept.TenantID, err)
	}
	return &department.Department{
		ID:        dbDept.ID,
		TenantID:  tenantID,
		Name:      dbDept.Name,
		CreatedAt: dbDept.CreatedAt,
		UpdatedAt: dbDept.UpdatedAt,
	}, nil
}
