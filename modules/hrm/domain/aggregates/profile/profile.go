package profile

import (
	"time"

	"github.com/google/uuid"
)

// Profile is the HR record for an employee. It references the identity
// (user) it belongs to; the reference may be absent for records created
// before provisioning completed.
type Profile interface {
	ID() uint
	TenantID() uuid.UUID
	UserID() *uint
	FirstName() string
	LastName() string
	Email() string
	EmployeeNumber() string
	HireDate() *time.Time
	DepartmentID() *uint
	CustomFields() map[string]string
	CreatedAt() time.Time
	UpdatedAt() time.Time

	AttachUser(userID uint)
	Rename(firstName, lastName string)
	SetEmployeeNumber(number string)
	SetHireDate(t *time.Time)
	AssignDepartment(departmentID *uint)
	SetCustomFields(fields map[string]string)
}

type Option func(*profileImpl)

func WithID(id uint) Option {
	return func(p *profileImpl) {
		p.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(p *profileImpl) {
		p.tenantID = tenantID
	}
}

func WithUserID(userID *uint) Option {
	return func(p *profileImpl) {
		p.userID = userID
	}
}

func WithEmployeeNumber(number string) Option {
	return func(p *profileImpl) {
		p.employeeNumber = number
	}
}

func WithHireDate(t *time.Time) Option {
	return func(p *profileImpl) {
		p.hireDate = t
	}
}

func WithDepartmentID(departmentID *uint) Option {
	return func(p *profileImpl) {
		p.departmentID = departmentID
	}
}

func WithCustomFields(fields map[string]string) Option {
	return func(p *profileImpl) {
		p.customFields = fields
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(p *profileImpl) {
		p.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(p *profileImpl) {
		p.updatedAt = t
	}
}

func New(firstName, lastName, email string, opts ...Option) Profile {
	now := time.Now()
	p := &profileImpl{
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type profileImpl struct {
	id             uint
	tenantID       uuid.UUID
	userID         *uint
	firstName      string
	lastName       string
	email          string
	employeeNumber string
	hireDate       *time.Time
	departmentID   *uint
	customFields   map[string]string
	createdAt      time.Time
	updatedAt      time.Time
}

func (p *profileImpl) ID() uint               { return p.id }
func (p *profileImpl) TenantID() uuid.UUID    { return p.tenantID }
func (p *profileImpl) UserID() *uint          { return p.userID }
func (p *profileImpl) FirstName() string      { return p.firstName }
func (p *profileImpl) LastName() string       { return p.lastName }
func (p *profileImpl) Email() string          { return p.email }
func (p *profileImpl) EmployeeNumber() string { return p.employeeNumber }
func (p *profileImpl) HireDate() *time.Time   { return p.hireDate }
func (p *profileImpl) DepartmentID() *uint    { return p.departmentID }
func (p *profileImpl) CustomFields() map[string]string {
	return p.customFields
}
func (p *profileImpl) CreatedAt() time.Time { return p.createdAt }
func (p *profileImpl) UpdatedAt() time.Time { return p.updatedAt }

func (p *profileImpl) AttachUser(userID uint) {
	p.userID = &userID
	p.updatedAt = time.Now()
}

func (p *profileImpl) Rename(firstName, lastName string) {
	p.firstName = firstName
	p.lastName = lastName
	p.updatedAt = time.Now()
}

func (p *profileImpl) SetEmployeeNumber(number string) {
	p.employeeNumber = number
	p.updatedAt = time.Now()
}

func (p *profileImpl) SetHireDate(t *time.Time) {
	p.hireDate = t
	p.updatedAt = time.Now()
}

func (p *profileImpl) AssignDepartment(departmentID *uint) {
	p.departmentID = departmentID
	p.updatedAt = time.Now()
}

func (p *profileImpl) SetCustomFields(fields map[string]string) {
	p.customFields = fields
	p.updatedAt = time.Now()
}
