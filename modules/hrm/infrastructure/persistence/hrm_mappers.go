package persistence

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	"github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence/models"
)

func toDomainProfile(dbProfile *models.Profile) (profile.Profile, error) {
	tenantID, err := uuid.Parse(dbProfile.TenantID)
	if err != nil {
		return nil, fmt.Errorf("failed to parse tenant id %q: %w", dbProfile.TenantID, err)
	}

	opts := []profile.Option{
		profile.WithID(dbProfile.ID),
		profile.WithTenantID(tenantID),
		profile.WithCreatedAt(dbProfile.CreatedAt),
		profile.WithUpdatedAt(dbProfile.UpdatedAt),
	}
	if dbProfile.UserID.Valid {
		userID := uint(dbProfile.UserID.Int64)
		opts = append(opts, profile.WithUserID(&userID))
	}
	if dbProfile.EmployeeNumber.Valid {
		opts = append(opts, profile.WithEmployeeNumber(dbProfile.EmployeeNumber.String))
	}
	if dbProfile.HireDate.Valid {
		hireDate := dbProfile.HireDate.Time
		opts = append(opts, profile.WithHireDate(&hireDate))
	}
	if dbProfile.DepartmentID.Valid {
		departmentID := uint(dbProfile.DepartmentID.Int64)
		opts = append(opts, profile.WithDepartmentID(&departmentID))
	}
	if len(dbProfile.CustomFields) > 0 {
		var fields map[string]string
		if err := json.Unmarshal(dbProfile.CustomFields, &fields); err != nil {
			return nil, fmt.Errorf("failed to decode custom fields: %w", err)
		}
		opts = append(opts, profile.WithCustomFields(fields))
	}

	return profile.New(
		dbProfile.FirstName,
		dbProfile.LastName,
		dbProfile.Email,
		opts...,
	), nil
}

func toDBProfile(entity profile.Profile) (*models.Profile, error) {
	dbProfile := &models.Profile{
		ID:        entity.ID(),
		TenantID:  entity.TenantID().String(),
		FirstName: entity.FirstName(),
		LastName:  entity.LastName(),
		Email:     entity.Email(),
		EmployeeNumber: sql.NullString{
			String: entity.EmployeeNumber(),
			Valid:  entity.EmployeeNumber() != "",
		},
		CreatedAt: entity.CreatedAt(),
		UpdatedAt: entity.UpdatedAt(),
	}
	if userID := entity.UserID(); userID != nil {
		dbProfile.UserID = sql.NullInt64{Int64: int64(*userID), Valid: true}
	}
	if hireDate := entity.HireDate(); hireDate != nil {
		dbProfile.HireDate = sql.NullTime{Time: *hireDate, Valid: true}
	}
	if departmentID := entity.DepartmentID(); departmentID != nil {
		dbProfile.DepartmentID = sql.NullInt64{Int64: int64(*departmentID), Valid: true}
	}
	if fields := entity.CustomFields(); len(fields) > 0 {
		encoded, err := json.Marshal(fields)
		if err != nil {
			return nil, fmt.Errorf("failed to encode custom fields: %w", err)
		}
		dbProfile.CustomFields = encoded
	}
	return dbProfile, nil
}
