package persistence

import (
	"context"
	"errors"

	gfErrors "github.com/go-faster/errors"

	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	"github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence/models"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/repo"
)

var (
	ErrProfileNotFound = errors.New("profile not found")
)

const (
	profileFindQuery = `
		SELECT
			p.id,
			p.tenant_id,
			p.user_id,
			p.first_name,
			p.last_name,
			p.email,
			p.employee_number,
			p.hire_date,
			p.department_id,
			p.custom_fields,
			p.created_at,
			p.updated_at
		FROM hr_profiles p`

	profileCountQuery = `SELECT COUNT(p.id) FROM hr_profiles p WHERE p.tenant_id = $1`

	profileUpdateQuery = `
		UPDATE hr_profiles
		SET user_id = $1,
			first_name = $2,
			last_name = $3,
			email = $4,
			employee_number = $5,
			hire_date = $6,
			department_id = $7,
			custom_fields = $8,
			updated_at = $9
		WHERE id = $10 AND tenant_id = $11`
)

type PgProfileRepository struct{}

func NewProfileRepository() profile.Repository {
	return &PgProfileRepository{}
}

func (g *PgProfileRepository) queryProfiles(ctx context.Context, query string, args ...interface{}) ([]profile.Profile, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query profiles")
	}
	defer rows.Close()

	profiles := make([]profile.Profile, 0)
	for rows.Next() {
		var dbProfile models.Profile
		if err := rows.Scan(
			&dbProfile.ID,
			&dbProfile.TenantID,
			&dbProfile.UserID,
			&dbProfile.FirstName,
			&dbProfile.LastName,
			&dbProfile.Email,
			&dbProfile.EmployeeNumber,
			&dbProfile.HireDate,
			&dbProfile.DepartmentID,
			&dbProfile.CustomFields,
			&dbProfile.CreatedAt,
			&dbProfile.UpdatedAt,
		); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan profile row")
		}
		entity, err := toDomainProfile(&dbProfile)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to map profile")
		}
		profiles = append(profiles, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate profile rows")
	}
	return profiles, nil
}

func (g *PgProfileRepository) Count(ctx context.Context) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, profileCountQuery, tenantID).Scan(&count); err != nil {
		return 0, gfErrors.Wrap(err, "failed to count profiles")
	}
	return count, nil
}

func (g *PgProfileRepository) GetByID(ctx context.Context, id uint) (profile.Profile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := g.queryProfiles(ctx, repo.Join(profileFindQuery, "WHERE p.id = $1 AND p.tenant_id = $2"), id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrProfileNotFound
	}
	return profiles[0], nil
}

func (g *PgProfileRepository) GetByEmail(ctx context.Context, email string) (profile.Profile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := g.queryProfiles(
		ctx,
		repo.Join(profileFindQuery, "WHERE LOWER(p.email) = LOWER($1) AND p.tenant_id = $2"),
		email,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrProfileNotFound
	}
	return profiles[0], nil
}

func (g *PgProfileRepository) GetByUserID(ctx context.Context, userID uint) (profile.Profile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	profiles, err := g.queryProfiles(ctx, repo.Join(profileFindQuery, "WHERE p.user_id = $1 AND p.tenant_id = $2"), userID, tenantID)
	if err != nil {
		return nil, err
	}
	if len(profiles) == 0 {
		return nil, ErrProfileNotFound
	}
	return profiles[0], nil
}

func (g *PgProfileRepository) Create(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	dbProfile, err := toDBProfile(entity)
	if err != nil {
		return nil, err
	}
	dbProfile.TenantID = tenantID.String()

	fields := []string{
		"tenant_id",
		"user_id",
		"first_name",
		"last_name",
		"email",
		"employee_number",
		"hire_date",
		"department_id",
		"custom_fields",
		"created_at",
		"updated_at",
	}
	var id uint
	if err := tx.QueryRow(
		ctx,
		repo.Insert("hr_profiles", fields, "id"),
		dbProfile.TenantID,
		dbProfile.UserID,
		dbProfile.FirstName,
		dbProfile.LastName,
		dbProfile.Email,
		dbProfile.EmployeeNumber,
		dbProfile.HireDate,
		dbProfile.DepartmentID,
		dbProfile.CustomFields,
		dbProfile.CreatedAt,
		dbProfile.UpdatedAt,
	).Scan(&id); err != nil {
		return nil, gfErrors.Wrap(err, "failed to insert profile")
	}
	return g.GetByID(ctx, id)
}

func (g *PgProfileRepository) Update(ctx context.Context, entity profile.Profile) (profile.Profile, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	dbProfile, err := toDBProfile(entity)
	if err != nil {
		return nil, err
	}
	tag, err := tx.Exec(
		ctx,
		profileUpdateQuery,
		dbProfile.UserID,
		dbProfile.FirstName,
		dbProfile.LastName,
		dbProfile.Email,
		dbProfile.EmployeeNumber,
		dbProfile.HireDate,
		dbProfile.DepartmentID,
		dbProfile.CustomFields,
		dbProfile.UpdatedAt,
		dbProfile.ID,
		tenantID,
	)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to update profile")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrProfileNotFound
	}
	return g.GetByID(ctx, entity.ID())
}
