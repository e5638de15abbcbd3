package library

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// AddBook validates the supplied fields, assigns a fresh identifier and
// stores the book with all copies free.
func (d *Database) AddBook(fields BookFields) (*Book, error) {
	if err := validate.Struct(fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	b := &Book{
		ID:              uuid.NewString(),
		Title:           fields.Title,
		Author:          fields.Author,
		ISBN:            fields.ISBN,
		Category:        fields.Category,
		Description:     fields.Description,
		CoverImage:      fields.CoverImage,
		PublicationYear: fields.PublicationYear,
		TotalCopies:     fields.Quantity,
		Quantity:        fields.Quantity,
		Available:       true,
	}

	_, err := d.db.Exec(
		`INSERT INTO books(id,title,author,isbn,category,description,cover_image,publication_year,total_copies,quantity,available)
         VALUES(?,?,?,?,?,?,?,?,?,?,?)`,
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Description, b.CoverImage,
		b.PublicationYear, b.TotalCopies, b.Quantity, b.Available)
	if err != nil {
		return nil, fmt.Errorf("add book: %w", err)
	}
	return b, nil
}

// UpdateBook replaces the stored record matching b.ID with b. There are no
// merge semantics; the caller supplies the full record. Available is
// recomputed from the quantity so the availability invariant cannot be
// broken by a stale caller copy.
func (d *Database) UpdateBook(b *Book) error {
	if b == nil || b.ID == "" {
		return fmt.Errorf("%w: missing book id", ErrValidation)
	}
	if b.Quantity < 0 || b.TotalCopies < 0 {
		return fmt.Errorf("%w: negative copy count", ErrValidation)
	}

	res, err := d.db.Exec(
		`UPDATE books SET title=?, author=?, isbn=?, category=?, description=?,
            cover_image=?, publication_year=?, total_copies=?, quantity=?, available=?
         WHERE id=?`,
		b.Title, b.Author, b.ISBN, b.Category, b.Description, b.CoverImage,
		b.PublicationYear, b.TotalCopies, b.Quantity, b.Quantity > 0, b.ID)
	if err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %s: %w", b.ID, ErrNotFound)
	}
	return nil
}

// DeleteBook removes the catalog entry. Outstanding borrow records keep
// referencing the dead id; ledger reads filter them out.
func (d *Database) DeleteBook(id string) error {
	res, err := d.db.Exec(`DELETE FROM books WHERE id=?`, id)
	if err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("book %s: %w", id, ErrNotFound)
	}
	return nil
}

// GetBook fetches a single book including its derived borrower set.
func (d *Database) GetBook(id string) (*Book, error) {
	b, err := d.scanBook(d.db.QueryRow(
		`SELECT id,title,author,isbn,category,description,cover_image,publication_year,total_copies,quantity,available
         FROM books WHERE id=?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("book %s: %w", id, ErrNotFound)
		}
		return nil, err
	}

	if b.BorrowedBy, err = d.openBorrowers(id); err != nil {
		return nil, err
	}
	return b, nil
}

// GetAllBooks returns every catalog entry, without the derived borrower
// sets, for quick listing.
func (d *Database) GetAllBooks() ([]*Book, error) {
	rows, err := d.db.Query(
		`SELECT id,title,author,isbn,category,description,cover_image,publication_year,total_copies,quantity,available
         FROM books ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var books []*Book
	for rows.Next() {
		b, err := d.scanBook(rows)
		if err != nil {
			return nil, err
		}
		books = append(books, b)
	}
	return books, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (d *Database) scanBook(row rowScanner) (*Book, error) {
	var b Book
	err := row.Scan(&b.ID, &b.Title, &b.Author, &b.ISBN, &b.Category, &b.Description,
		&b.CoverImage, &b.PublicationYear, &b.TotalCopies, &b.Quantity, &b.Available)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// openBorrowers derives the borrower-identifier set from open records.
// The ledger allows at most one open record per (book, borrower) pair, so
// no deduplication is needed here.
func (d *Database) openBorrowers(bookID string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT borrower_id FROM borrow_records WHERE book_id=? AND returned=0 ORDER BY borrow_at`, bookID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
