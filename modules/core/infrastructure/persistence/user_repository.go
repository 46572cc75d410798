package persistence

import (
	"context"
	"errors"

	gfErrors "github.com/go-faster/errors"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence/models"
	"github.com/staffbridge/staffbridge/pkg/composables"
	"github.com/staffbridge/staffbridge/pkg/repo"
)

var (
	ErrUserNotFound = errors.New("user not found")
)

const (
	userFindQuery = `
		SELECT
			u.id,
			u.tenant_id,
			u.first_name,
			u.last_name,
			u.email,
			u.role,
			u.password,
			u.created_at,
			u.updated_at
		FROM users u`

	userCountQuery = `SELECT COUNT(u.id) FROM users u WHERE u.tenant_id = $1`

	userEmailExistsQuery = `SELECT EXISTS (
		SELECT 1 FROM users u WHERE LOWER(u.email) = LOWER($1) AND u.tenant_id = $2
	)`

	userUpdateQuery = `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, role = $4, password = $5, updated_at = $6
		WHERE id = $7 AND tenant_id = $8`
)

type PgUserRepository struct{}

func NewUserRepository() user.Repository {
	return &PgUserRepository{}
}

func (g *PgUserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]user.User, error) {
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to query users")
	}
	defer rows.Close()

	users := make([]user.User, 0)
	for rows.Next() {
		var dbUser models.User
		if err := rows.Scan(
			&dbUser.ID,
			&dbUser.TenantID,
			&dbUser.FirstName,
			&dbUser.LastName,
			&dbUser.Email,
			&dbUser.Role,
			&dbUser.Password,
			&dbUser.CreatedAt,
			&dbUser.UpdatedAt,
		); err != nil {
			return nil, gfErrors.Wrap(err, "failed to scan user row")
		}
		entity, err := ToDomainUser(&dbUser)
		if err != nil {
			return nil, gfErrors.Wrap(err, "failed to map user")
		}
		users = append(users, entity)
	}
	if err := rows.Err(); err != nil {
		return nil, gfErrors.Wrap(err, "failed to iterate user rows")
	}
	return users, nil
}

func (g *PgUserRepository) GetByID(ctx context.Context, id uint) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := g.queryUsers(ctx, repo.Join(userFindQuery, "WHERE u.id = $1 AND u.tenant_id = $2"), id, tenantID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

// GetByEmail matches case-insensitively so that rows imported with
// mixed-case addresses resolve to the same identity.
func (g *PgUserRepository) GetByEmail(ctx context.Context, email string) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	users, err := g.queryUsers(
		ctx,
		repo.Join(userFindQuery, "WHERE LOWER(u.email) = LOWER($1) AND u.tenant_id = $2"),
		email,
		tenantID,
	)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, ErrUserNotFound
	}
	return users[0], nil
}

func (g *PgUserRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return false, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := tx.QueryRow(ctx, userEmailExistsQuery, email, tenantID).Scan(&exists); err != nil {
		return false, gfErrors.Wrap(err, "failed to check email existence")
	}
	return exists, nil
}

func (g *PgUserRepository) Create(ctx context.Context, entity user.User) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	dbUser := toDBUser(entity)
	dbUser.TenantID = tenantID.String()

	fields := []string{
		"tenant_id",
		"first_name",
		"last_name",
		"email",
		"role",
		"password",
		"created_at",
		"updated_at",
	}
	var id uint
	if err := tx.QueryRow(
		ctx,
		repo.Insert("users", fields, "id"),
		dbUser.TenantID,
		dbUser.FirstName,
		dbUser.LastName,
		dbUser.Email,
		dbUser.Role,
		dbUser.Password,
		dbUser.CreatedAt,
		dbUser.UpdatedAt,
	).Scan(&id); err != nil {
		return nil, gfErrors.Wrap(err, "failed to insert user")
	}
	return g.GetByID(ctx, id)
}

func (g *PgUserRepository) Update(ctx context.Context, entity user.User) (user.User, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return nil, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return nil, err
	}

	dbUser := toDBUser(entity)
	tag, err := tx.Exec(
		ctx,
		userUpdateQuery,
		dbUser.FirstName,
		dbUser.LastName,
		dbUser.Email,
		dbUser.Role,
		dbUser.Password,
		dbUser.UpdatedAt,
		dbUser.ID,
		tenantID,
	)
	if err != nil {
		return nil, gfErrors.Wrap(err, "failed to update user")
	}
	if tag.RowsAffected() == 0 {
		return nil, ErrUserNotFound
	}
	return g.GetByID(ctx, entity.ID())
}

func (g *PgUserRepository) Count(ctx context.Context) (int64, error) {
	tenantID, err := composables.UseTenantID(ctx)
	if err != nil {
		return 0, err
	}
	tx, err := composables.UseTx(ctx)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := tx.QueryRow(ctx, userCountQuery, tenantID).Scan(&count); err != nil {
		return 0, gfErrors.Wrap(err, "failed to count users")
	}
	return count, nil
}
