package persistence

import (
	"context"
	"errors"

	gfErrors "github.com/go-faster/errors"

	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	"github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence/models"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/repo"
)

var (
	ErrDepartmentNotFound = errors.New("department not found")
)

const (
	departmentFindQuery = `
		SELECT
			d.id,
			d.tenant_id,
			d.name,
			d.created_at,
			d.updated_at
		FROM departments d`
)

type PgDepartmentRepository struct{}

func NewDepartmentRepository() department.Repository {
	return &PgDepartmentRepository{}
}

func (g *PgDepartmentRepository) queryDepartments(ctx context.Context, query string, args ...interface{}) ([]*department.Department, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query departments")
	}
	defer rows.Close()

	departments := make([]*department.Department, 0)
	for rows.Next() {
		var dbDept models.Department
		if err := rows.Scan(
			&dbDept.ID,
			&dbDept.TenantID,
			&dbDept.Name,
			&dbDept.CreatedAt,
			&dbDept.UpdatedAt,
		); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan department row")
		}
		entity, err := toDomainDepartment(&dbDept)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to map department")
		}
		departments = append(departments, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate department rows")
	}
	return departments, nil
}

func (g *PgDepartmentRepository) GetAll(ctx context.Context) ([]*department.Department, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	return g.queryDepartments(ctx, repo.Join(departmentFindQuery, "WHERE d.tenant_id = $1 ORDER BY d.name"), tenantID)
}

func (g *PgDepartmentRepository) GetByID(ctx context.Context, id uint) (*department.Department, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	departments, err := g.queryDepartments(ctx, repo.Join(departmentFindQuery, "WHERE d.id = $1 AND d.tenant_id = $2"), id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(departments) == 0 {
		return nil, ErrDepartmentNotFound
	}
	return departments[0], nil
}

func (g *PgDepartmentRepository) Create(ctx context.Context, d *department.Department) (*department.Department, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	fields := []string{"tenant_id", "name", "created_at", "updated_at"}
	var id uint
	if err := tx.QueryRow(
		ctx,
		repo.Insert("departments", fields, "id"),
		tenantID.String(),
		d.Name,
		d.CreatedAt,
		d.UpdatedAt,
	).Scan(&id); err != nil {
		return nil, gfErrors.Wrap(err, "failed to insert department")
	}
	return g.GetByID(ctx, id)
}
