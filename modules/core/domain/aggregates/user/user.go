package user

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// User is the authentication-capable identity backing an employee profile.
type User interface {
	ID() uint
	TenantID() uuid.UUID
	FirstName() string
	LastName() string
	Email() Email
	Role() Role
	PasswordHash() string
	CreatedAt() time.Time
	UpdatedAt() time.Time

	Rename(firstName, lastName string)
	SetRole(role Role)
	SetPassword(raw string) error
	CheckPassword(raw string) bool
}

type Option func(*userImpl)

func WithID(id uint) Option {
	return func(u *userImpl) {
		u.id = id
	}
}

func WithTenantID(tenantID uuid.UUID) Option {
	return func(u *userImpl) {
		u.tenantID = tenantID
	}
}

func WithPasswordHash(hash string) Option {
	return func(u *userImpl) {
		u.passwordHash = hash
	}
}

func WithCreatedAt(t time.Time) Option {
	return func(u *userImpl) {
		u.createdAt = t
	}
}

func WithUpdatedAt(t time.Time) Option {
	return func(u *userImpl) {
		u.updatedAt = t
	}
}

func New(firstName, lastName string, email Email, role Role, opts ...Option) User {
	now := time.Now()
	u := &userImpl{
		firstName: firstName,
		lastName:  lastName,
		email:     email,
		role:      role,
		createdAt: now,
		updatedAt: now,
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

type userImpl struct {
	id           uint
	tenantID     uuid.UUID
	firstName    string
	lastName     string
	email        Email
	role         Role
	passwordHash string
	createdAt    time.Time
	updatedAt    time.Time
}

func (u *userImpl) ID() uint            { return u.id }
func (u *userImpl) TenantID() uuid.UUID { return u.tenantID }
func (u *userImpl) FirstName() string   { return u.firstName }
func (u *userImpl) LastName() string    { return u.lastName }
func (u *userImpl) Email() Email        { return u.email }
func (u *userImpl) Role() Role          { return u.role }
func (u *userImpl) PasswordHash() string {
	return u.passwordHash
}
func (u *userImpl) CreatedAt() time.Time { return u.createdAt }
func (u *userImpl) UpdatedAt() time.Time { return u.updatedAt }

func (u *userImpl) Rename(firstName, lastName string) {
	u.firstName = firstName
	u.lastName = lastName
	u.updatedAt = time.Now()
}

func (u *userImpl) SetRole(role Role) {
	u.role = role
	u.updatedAt = time.Now()
}

func (u *userImpl) SetPassword(raw string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.passwordHash = string(hash)
	u.updatedAt = time.Now()
	return nil
}

func (u *userImpl) CheckPassword(raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(raw)) == nil
}
