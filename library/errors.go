package library

import "errors"

// Error taxonomy shared by all stores. Callers match with errors.Is; most
// operations wrap these with entity context via fmt.Errorf and %w.
var (
	ErrNotFound           = errors.New("not found")
	ErrUnavailable        = errors.New("no free copies available")
	ErrAlreadyBorrowed    = errors.New("borrower already has an open loan for this book")
	ErrNoActiveLoan       = errors.New("no active loan for this book and borrower")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("operation not permitted")
	ErrValidation         = errors.New("invalid input")
)
