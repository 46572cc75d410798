package persistence

import (
	"context"
	"database/sql"
	"errors"

	gfErrors "github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/staffbridge/staffbridge/modules/core/domain/entities/tenant"
	"github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence/models"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/repo"
)

var (
	ErrTenantNotFound = errors.New("tenant not found")
)

const (
	tenantFindQuery = `
		SELECT
			t.id,
			t.name,
			t.domain,
			t.is_active,
			t.created_at,
			t.updated_at
		FROM tenants t`
)

type PgTenantRepository struct{}

func NewTenantRepository() tenant.Repository {
	return &PgTenantRepository{}
}

func (g *PgTenantRepository) queryTenants(ctx context.Context, query string, args ...interface{}) ([]*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query tenants")
	}
	defer rows.Close()

	tenants := make([]*tenant.Tenant, 0)
	for rows.Next() {
		var dbTenant models.Tenant
		if err := rows.Scan(
			&dbTenant.ID,
			&dbTenant.Name,
			&dbTenant.Domain,
			&dbTenant.IsActive,
			&dbTenant.CreatedAt,
			&dbTenant.UpdatedAt,
		); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan tenant row")
		}
		entity, err := toDomainTenant(&dbTenant)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to map tenant")
		}
		tenants = append(tenants, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate tenant rows")
	}
	return tenants, nil
}

func (g *PgTenantRepository) GetByID(ctx context.Context, id uuid.UUID) (*tenant.Tenant, error) {
	tenants, err := g.queryTenants(ctx, repo.Join(tenantFindQuery, "WHERE t.id = $1"), id)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (g *PgTenantRepository) GetByDomain(ctx context.Context, domain string) (*tenant.Tenant, error) {
	tenants, err := g.queryTenants(ctx, repo.Join(tenantFindQuery, "WHERE t.domain = $1"), domain)
	if err != nil {
		return nil, err
	}
	if len(tenants) == 0 {
		return nil, ErrTenantNotFound
	}
	return tenants[0], nil
}

func (g *PgTenantRepository) Create(ctx context.Context, t *tenant.Tenant) (*tenant.Tenant, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	fields := []string{"id", "name", "domain", "is_active", "created_at", "updated_at"}
	if _, err := tx.Exec(
		ctx,
		repo.Insert("tenants", fields),
		t.ID.String(),
		t.Name,
		sql.NullString{String: t.Domain, Valid: t.Domain != ""},
		t.IsActive,
		t.CreatedAt,
		t.UpdatedAt,
	); err != nil {
		return nil, gfErrors.Wrap(err, "failed to insert tenant")
	}
	return g.GetByID(ctx, t.ID)
}
