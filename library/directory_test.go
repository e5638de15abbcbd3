package library

import (
	"errors"
	"testing"
)

func TestRegisterUserValidation(t *testing.T) {
	db := tempDB(t)

	cases := []struct {
		name, uname, email, password string
		role                         Role
	}{
		{"missing name", "", "a@b.com", "secret", RoleStudent},
		{"bad email", "Alice", "not-an-email", "secret", RoleStudent},
		{"short password", "Alice", "a@b.com", "abc", RoleStudent},
		{"unknown role", "Alice", "a@b.com", "secret", Role("janitor")},
	}
	for _, tc := range cases {
		if _, err := db.RegisterUser(tc.uname, tc.email, tc.password, tc.role); !errors.Is(err, ErrValidation) {
			t.Fatalf("%s: want ErrValidation, got %v", tc.name, err)
		}
	}
}

func TestAuthenticateStripsCredential(t *testing.T) {
	db := tempDB(t)

	created, err := db.RegisterUser("Alice", "alice@library.com", "hunter2", RoleStudent)
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	u, err := db.Authenticate("alice@library.com", "hunter2")
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if u.ID != created.ID || u.Role != RoleStudent || u.Name != "Alice" {
		t.Fatalf("unexpected identity: %+v", u)
	}

	if _, err := db.Authenticate("alice@library.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
	if _, err := db.Authenticate("ghost@library.com", "hunter2"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}
}

func TestGetUserAndStudentCount(t *testing.T) {
	db := tempDB(t)

	alice, _ := db.RegisterUser("Alice", "alice@library.com", "secret", RoleStudent)
	db.RegisterUser("Bob", "bob@library.com", "secret", RoleStudent)
	db.RegisterUser("Libby", "libby@library.com", "secret", RoleLibrarian)

	u, err := db.GetUser(alice.ID)
	if err != nil {
		t.Fatalf("get user: %v", err)
	}
	if u.Email != "alice@library.com" {
		t.Fatalf("unexpected user: %+v", u)
	}
	if _, err := db.GetUser("ghost"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("want ErrNotFound, got %v", err)
	}

	n, err := db.GetStudentCount()
	if err != nil {
		t.Fatalf("student count: %v", err)
	}
	if n != 2 {
		t.Fatalf("want 2 students, got %d", n)
	}
}
