/*
directory.go - Directory service (users and authentication)

AUTHENTICATION:
  Authenticate reports one uniform ErrInvalidCredentials for an unknown
  email, an inactive account and a wrong password. The log keeps them
  apart through the "reason" field. Unknown emails still pay for one
  bcrypt comparison so response time does not reveal which emails exist.

PASSWORD POLICY:
  6..100 characters, checked before hashing (see password.go).
*/
package library

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// dummyHash is compared against when the email is unknown.
const dummyHash = "$2a$10$7EqJtq98hPqEX7fNZaFWoOa6/xF3Yg6yD8gRpzPSkpLOxVbRqCmpa"

type Directory struct {
	service
}

func NewDirectory(store Store, opts Options) *Directory {
	return &Directory{service: newService(store, "directory", opts)}
}

// NewUser is the input to CreateUser.
type NewUser struct {
	Name     string
	Email    string
	Password string
	Role     Role
}

// CreateUser validates, hashes the secret and stores an active user.
func (d *Directory) CreateUser(ctx context.Context, in NewUser) (*User, error) {
	name := strings.TrimSpace(in.Name)
	if err := required("name", name); err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(in.Email)
	if err != nil {
		return nil, err
	}
	if !in.Role.Valid() {
		return nil, invalid("role", "unknown role %q", in.Role)
	}
	if err := ValidatePassword(in.Password); err != nil {
		return nil, err
	}
	inUse, err := d.EmailInUse(ctx, email)
	if err != nil {
		return nil, err
	}
	if inUse {
		return nil, ErrEmailInUse
	}

	hash, err := d.hasher.Hash(in.Password)
	if err != nil {
		return nil, d.check("hash password", err)
	}
	u := User{Name: name, Email: email, PasswordHash: hash, Role: in.Role, Active: true}
	if err := d.store.InsertUser(ctx, &u); err != nil {
		return nil, d.check("create user", err)
	}
	d.log.WithField("user_id", u.ID).Infof("user created: %s (%s)", u.Email, u.Role)
	d.record(ctx, "CREATE_USER", fmt.Sprintf("user %d %s role=%s", u.ID, u.Email, u.Role))
	return &u, nil
}

// UpdateUser edits name, email, role and active flag. The password is untouched.
func (d *Directory) UpdateUser(ctx context.Context, u User) (*User, error) {
	u.Name = strings.TrimSpace(u.Name)
	if err := required("name", u.Name); err != nil {
		return nil, err
	}
	email, err := NormalizeEmail(u.Email)
	if err != nil {
		return nil, err
	}
	u.Email = email
	if !u.Role.Valid() {
		return nil, invalid("role", "unknown role %q", u.Role)
	}
	existing, err := d.store.GetUserByEmail(ctx, u.Email)
	if err != nil {
		return nil, d.check("update user", err)
	}
	if existing != nil && existing.ID != u.ID {
		return nil, ErrEmailInUse
	}
	ok, err := d.store.UpdateUser(ctx, u)
	if err != nil {
		return nil, d.check("update user", err)
	}
	if !ok {
		return nil, ErrUserNotFound
	}
	d.record(ctx, "UPDATE_USER", fmt.Sprintf("user %d %s role=%s active=%t", u.ID, u.Email, u.Role, u.Active))
	return d.GetUser(ctx, u.ID)
}

func (d *Directory) ChangePassword(ctx context.Context, id int64, secret string) error {
	if err := ValidatePassword(secret); err != nil {
		return err
	}
	hash, err := d.hasher.Hash(secret)
	if err != nil {
		return d.check("hash password", err)
	}
	ok, err := d.store.UpdatePassword(ctx, id, hash)
	if err != nil {
		return d.check("change password", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	d.record(ctx, "CHANGE_PASSWORD", fmt.Sprintf("user %d", id))
	return nil
}

// ResetPassword replaces the secret with a generated one and returns it.
func (d *Directory) ResetPassword(ctx context.Context, id int64) (string, error) {
	secret, err := GeneratePassword(10)
	if err != nil {
		return "", d.check("generate password", err)
	}
	if err := d.ChangePassword(ctx, id, secret); err != nil {
		return "", err
	}
	return secret, nil
}

func (d *Directory) Deactivate(ctx context.Context, id int64) error {
	ok, err := d.store.SetActive(ctx, id, false)
	if err != nil {
		return d.check("deactivate user", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	d.record(ctx, "DEACTIVATE_USER", fmt.Sprintf("user %d", id))
	return nil
}

// DeleteUser removes a user with no loan history. Deactivate otherwise.
func (d *Directory) DeleteUser(ctx context.Context, id int64) error {
	n, err := d.store.CountLoansByUser(ctx, id)
	if err != nil {
		return d.check("delete user", err)
	}
	if n > 0 {
		return ErrUserHasLoans
	}
	ok, err := d.store.DeleteUser(ctx, id)
	if err != nil {
		return d.check("delete user", err)
	}
	if !ok {
		return ErrUserNotFound
	}
	d.record(ctx, "DELETE_USER", fmt.Sprintf("user %d", id))
	return nil
}

func (d *Directory) GetUser(ctx context.Context, id int64) (*User, error) {
	u, err := d.store.GetUser(ctx, id)
	if err != nil {
		return nil, d.check("get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (d *Directory) FindByEmail(ctx context.Context, email string) (*User, error) {
	u, err := d.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, d.check("find user by email", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

func (d *Directory) EmailInUse(ctx context.Context, email string) (bool, error) {
	u, err := d.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return false, d.check("email lookup", err)
	}
	return u != nil, nil
}

func (d *Directory) ListUsers(ctx context.Context) ([]User, error) {
	return d.FilterUsers(ctx, UserFilter{})
}

func (d *Directory) ListActiveUsers(ctx context.Context) ([]User, error) {
	return d.FilterUsers(ctx, UserFilter{ActiveOnly: true})
}

// ListByRole returns the active users holding role.
func (d *Directory) ListByRole(ctx context.Context, role Role) ([]User, error) {
	if !role.Valid() {
		return nil, invalid("role", "unknown role %q", role)
	}
	return d.FilterUsers(ctx, UserFilter{Role: role, ActiveOnly: true})
}

func (d *Directory) SearchUsers(ctx context.Context, name string) ([]User, error) {
	return d.FilterUsers(ctx, UserFilter{Name: strings.TrimSpace(name)})
}

// FilterUsers lists users ordered by name.
func (d *Directory) FilterUsers(ctx context.Context, f UserFilter) ([]User, error) {
	users, err := d.store.ListUsers(ctx, f)
	return users, d.check("list users", err)
}

func (d *Directory) CountUsers(ctx context.Context) (int, error) {
	n, err := d.store.CountUsers(ctx)
	return n, d.check("count users", err)
}

// =============================================================================
// AUTHENTICATION
// =============================================================================

// Authenticate returns the user for a matching email and secret. Every
// failure the caller can observe is ErrInvalidCredentials, except
// infrastructure faults which are ErrOperationFailed.
func (d *Directory) Authenticate(ctx context.Context, email, secret string) (*User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	entry := d.log.WithField("email", email)

	if email == "" || secret == "" {
		entry.WithField("reason", "missing_fields").Warn("login failed")
		return nil, ErrInvalidCredentials
	}

	u, err := d.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, d.check("authenticate", err)
	}
	if u == nil {
		d.hasher.Verify(dummyHash, secret)
		entry.WithField("reason", "unknown_email").Warn("login failed: unknown email")
		d.audit.SystemAction("LOGIN_FAILED", "unknown email "+email)
		return nil, ErrInvalidCredentials
	}
	// Every path with a known email pays for one comparison.
	matched := d.hasher.Verify(u.PasswordHash, secret)
	if !u.Active {
		entry.WithField("reason", "inactive_account").Warn("login failed: inactive account")
		d.audit.UserAction(u.ID, "LOGIN_FAILED", "inactive account")
		return nil, ErrInvalidCredentials
	}
	if !matched {
		entry.WithField("reason", "wrong_password").Warn("login failed: wrong password")
		d.audit.UserAction(u.ID, "LOGIN_FAILED", "wrong password")
		return nil, ErrInvalidCredentials
	}

	entry.WithField("user_id", u.ID).Info("login succeeded")
	d.audit.UserAction(u.ID, "LOGIN", "user logged in")
	return u, nil
}

// Login authenticates and opens a session for the user.
func (d *Directory) Login(ctx context.Context, email, secret string, ttl time.Duration) (Session, error) {
	u, err := d.Authenticate(ctx, email, secret)
	if err != nil {
		return Session{}, err
	}
	return NewSession(*u, d.clock.Now(), ttl), nil
}

// Logout records the end of a session.
func (d *Directory) Logout(ctx context.Context, s Session) {
	d.audit.UserAction(s.User.ID, "LOGOUT", "user logged out")
}
