package library

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// userFields carries registration input through validation.
type userFields struct {
	Name     string `validate:"required"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=4"`
}

// RegisterUser stores a directory record with a bcrypt-hashed credential
// and returns the credential-free identity.
func (d *Database) RegisterUser(name, email, password string, role Role) (*User, error) {
	if err := validate.Struct(userFields{Name: name, Email: email, Password: password}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if role != RoleLibrarian && role != RoleStudent {
		return nil, fmt.Errorf("%w: unknown role %q", ErrValidation, role)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &User{ID: uuid.NewString(), Name: name, Email: email, Role: role}
	_, err = d.db.Exec(
		`INSERT INTO users(id,name,email,password_hash,role) VALUES(?,?,?,?,?)`,
		u.ID, u.Name, u.Email, string(hash), string(u.Role))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, fmt.Errorf("%w: email already registered", ErrValidation)
		}
		return nil, fmt.Errorf("register user: %w", err)
	}
	return u, nil
}

// Authenticate resolves an exact email/password match to an identity with
// the credential stripped. Both a missing account and a wrong password
// yield ErrInvalidCredentials so the two are indistinguishable to callers.
func (d *Database) Authenticate(email, password string) (*User, error) {
	var u User
	var hash string
	var role string
	err := d.db.QueryRow(
		`SELECT id, name, email, password_hash, role FROM users WHERE email=?`, email).
		Scan(&u.ID, &u.Name, &u.Email, &hash, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) != nil {
		return nil, ErrInvalidCredentials
	}
	u.Role = Role(role)
	return &u, nil
}

// GetUser fetches a single identity.
func (d *Database) GetUser(id string) (*User, error) {
	var u User
	var role string
	err := d.db.QueryRow(`SELECT id, name, email, role FROM users WHERE id=?`, id).
		Scan(&u.ID, &u.Name, &u.Email, &role)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

// GetStudentCount counts directory records with the student role.
func (d *Database) GetStudentCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM users WHERE role=?`, string(RoleStudent)).Scan(&n)
	return n, err
}
