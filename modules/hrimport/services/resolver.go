package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/staffbridge/staffbridge/modules/core/domain/aggregates/user"
	"github.com/staffbridge/staffbridge/modules/core/domain/entities/department"
	"github.com/staffbridge/staffbridge/modules/hrimport/domain/mapping"
	"github.com/staffbridge/staffbridge/modules/hrm/domain/aggregates/profile"
	corepersistence "github.com/staffbridge/staffbridge/modules/core/infrastructure/persistence"
	hrmpersistence "github.com/staffbridge/staffbridge/modules/hrm/infrastructure/persistence"
)

const hireDateLayout = "2006-01-02"

// IdentityProvisioningError marks a row that failed while looking up or
// creating the user account behind a profile.
type IdentityProvisioningError struct {
	Email string
	Err   error
}

func (e *IdentityProvisioningError) Error() string {
	return fmt.Sprintf("identity provisioning failed for %s: %v", e.Email, e.Err)
}

func (e *IdentityProvisioningError) Unwrap() error { return e.Err }

// ProfilePersistenceError marks a row whose identity resolved but whose
// profile write failed.
type ProfilePersistenceError struct {
	Email string
	Err   error
}

func (e *ProfilePersistenceError) Error() string {
	return fmt.Sprintf("profile persistence failed for %s: %v", e.Email, e.Err)
}

func (e *ProfilePersistenceError) Unwrap() error { return e.Err }

// identityResolver turns one normalized record into a (user, profile)
// pair: find-or-create the user by email, then upsert the profile.
// Running it twice over the same record yields the same pair.
type identityResolver struct {
	users       user.Repository
	profiles    profile.Repository
	departments map[string]uint // lower(name) -> id
	logger      *logrus.Entry
}

func newIdentityResolver(
	users user.Repository,
	profiles profile.Repository,
	departments []*department.Department,
	logger *logrus.Entry,
) *identityResolver {
	byName := make(map[string]uint, len(departments))
	for _, d := range departments {
		byName[strings.ToLower(d.Name)] = d.ID
	}
	return &identityResolver{
		users:       users,
		profiles:    profiles,
		departments: byName,
		logger:      logger,
	}
}

// Resolve processes a single record and reports whether a new user
// account was created for it. It must be called inside a tenant
// transaction so both writes land or neither does.
func (r *identityResolver) Resolve(ctx context.Context, record *mapping.NormalizedRecord) (bool, error) {
	email, err := user.NewEmail(record.Email)
	if err != nil {
		return false, fmt.Errorf("invalid email %q: %w", record.Email, err)
	}

	var hireDate *time.Time
	if record.HireDate != "" {
		parsed, err := time.Parse(hireDateLayout, record.HireDate)
		if err != nil {
			return false, fmt.Errorf("invalid hire date %q: expected YYYY-MM-DD", record.HireDate)
		}
		hireDate = &parsed
	}

	resolved, authCreated, err := r.resolveUser(ctx, email, record)
	if err != nil {
		return false, &IdentityProvisioningError{Email: email.String(), Err: err}
	}

	if err := r.upsertProfile(ctx, resolved, record, hireDate); err != nil {
		return false, &ProfilePersistenceError{Email: email.String(), Err: err}
	}
	return authCreated, nil
}

func (r *identityResolver) resolveUser(ctx context.Context, email user.Email, record *mapping.NormalizedRecord) (user.User, bool, error) {
	existing, err := r.users.GetByEmail(ctx, email.String())
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, corepersistence.ErrUserNotFound) {
		return nil, false, err
	}

	entity := user.New(record.FirstName, record.LastName, email, user.RoleEmployee)
	tempPassword, err := user.GenerateTempPassword(16)
	if err != nil {
		return nil, false, err
	}
	if err := entity.SetPassword(tempPassword); err != nil {
		return nil, false, err
	}
	created, err := r.users.Create(ctx, entity)
	if err != nil {
		return nil, false, err
	}
	return created, true, nil
}

func (r *identityResolver) upsertProfile(ctx context.Context, account user.User, record *mapping.NormalizedRecord, hireDate *time.Time) error {
	departmentID := r.matchDepartment(record.Department)
	email := account.Email().String()

	existing, err := r.profiles.GetByEmail(ctx, email)
	if err != nil && !errors.Is(err, hrmpersistence.ErrProfileNotFound) {
		return err
	}

	if err != nil { // not found
		userID := account.ID()
		entity := profile.New(
			record.FirstName,
			record.LastName,
			email,
			profile.WithUserID(&userID),
			profile.WithEmployeeNumber(record.EmployeeNumber),
			profile.WithHireDate(hireDate),
			profile.WithDepartmentID(departmentID),
			profile.WithCustomFields(record.Custom),
		)
		_, err = r.profiles.Create(ctx, entity)
		return err
	}

	if record.FirstName != "" || record.LastName != "" {
		existing.Rename(record.FirstName, record.LastName)
	}
	if record.EmployeeNumber != "" {
		existing.SetEmployeeNumber(record.EmployeeNumber)
	}
	if hireDate != nil {
		existing.SetHireDate(hireDate)
	}
	if departmentID != nil {
		existing.AssignDepartment(departmentID)
	}
	if len(record.Custom) > 0 {
		existing.SetCustomFields(record.Custom)
	}
	if existing.UserID() == nil {
		existing.AttachUser(account.ID())
	}
	_, err = r.profiles.Update(ctx, existing)
	return err
}

// matchDepartment resolves a department name case-insensitively. An
// unknown name leaves the profile without a department rather than
// failing the row.
func (r *identityResolver) matchDepartment(name string) *uint {
	if name == "" {
		return nil
	}
	id, ok := r.departments[strings.ToLower(name)]
	if !ok {
		r.logger.WithField("department", name).Debug("department not found, leaving profile unassigned")
		return nil
	}
	return &id
}
