package library

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// lateFeeCentsPerDay is charged for every started 24-hour block past the
// due date. Fees are kept in whole cents; the exposed value is a
// two-decimal float.
const lateFeeCentsPerDay = 50

const millisPerDay = 24 * 60 * 60 * 1000

// CalculateLateFee returns the fee owed for a loan due at dueDate when
// inspected at asOf. A loan overdue by even a minute owes a full day.
func CalculateLateFee(dueDate, asOf time.Time) float64 {
	return float64(lateFeeCents(dueDate, asOf)) / 100
}

func lateFeeCents(dueDate, asOf time.Time) int64 {
	if !dueDate.Before(asOf) {
		return 0
	}
	elapsed := asOf.Sub(dueDate).Milliseconds()
	days := (elapsed + millisPerDay - 1) / millisPerDay
	return days * lateFeeCentsPerDay
}

// BorrowBook lends one free copy of the book to the borrower. It fails with
// ErrUnavailable when no copies are free and with ErrAlreadyBorrowed when
// the pair already has an open record. Check-then-act runs inside one
// transaction so concurrent borrows cannot oversell the last copy.
func (d *Database) BorrowBook(bookID, borrowerID string) (*BorrowRecord, error) {
	if bookID == "" || borrowerID == "" {
		return nil, fmt.Errorf("%w: book and borrower ids required", ErrValidation)
	}
	now := d.now()

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var qty int
	err = tx.QueryRow(`SELECT quantity FROM books WHERE id=?`, bookID).Scan(&qty)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if qty <= 0 {
		return nil, fmt.Errorf("book %s: %w", bookID, ErrUnavailable)
	}

	var open bool
	err = tx.QueryRow(
		`SELECT EXISTS(SELECT 1 FROM borrow_records WHERE book_id=? AND borrower_id=? AND returned=0)`,
		bookID, borrowerID).Scan(&open)
	if err != nil {
		return nil, err
	}
	if open {
		return nil, fmt.Errorf("book %s, borrower %s: %w", bookID, borrowerID, ErrAlreadyBorrowed)
	}

	rec := &BorrowRecord{
		ID:         uuid.NewString(),
		BookID:     bookID,
		BorrowerID: borrowerID,
		BorrowDate: now,
		DueDate:    now.Add(LoanPeriod),
	}
	if _, err = tx.Exec(
		`INSERT INTO borrow_records(id,book_id,borrower_id,borrow_at,due_at,returned,late_fee_cents)
         VALUES(?,?,?,?,?,0,0)`,
		rec.ID, rec.BookID, rec.BorrowerID, toMillis(rec.BorrowDate), toMillis(rec.DueDate)); err != nil {
		return nil, err
	}

	// Assignments in an UPDATE all see the pre-update row, so available is
	// recomputed from the decremented count.
	if _, err = tx.Exec(
		`UPDATE books SET quantity = quantity - 1, available = quantity - 1 > 0 WHERE id=?`, bookID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return rec, nil
}

// ReturnBook closes the unique open record for the pair, fixing the final
// late fee against the current instant, and frees the copy.
func (d *Database) ReturnBook(bookID, borrowerID string) (*BorrowRecord, error) {
	now := d.now()

	tx, err := d.db.Begin()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	rec := BorrowRecord{BookID: bookID, BorrowerID: borrowerID}
	var borrowMs, dueMs int64
	err = tx.QueryRow(
		`SELECT id, borrow_at, due_at FROM borrow_records
         WHERE book_id=? AND borrower_id=? AND returned=0`,
		bookID, borrowerID).Scan(&rec.ID, &borrowMs, &dueMs)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("book %s, borrower %s: %w", bookID, borrowerID, ErrNoActiveLoan)
	}
	if err != nil {
		return nil, err
	}
	rec.BorrowDate = fromMillis(borrowMs)
	rec.DueDate = fromMillis(dueMs)

	feeCents := lateFeeCents(rec.DueDate, now)
	if _, err = tx.Exec(
		`UPDATE borrow_records SET returned=1, return_at=?, late_fee_cents=? WHERE id=?`,
		toMillis(now), feeCents, rec.ID); err != nil {
		return nil, err
	}

	// The book row may be gone if the title was deleted mid-loan; the
	// record still closes, there is just no copy count to restore.
	if _, err = tx.Exec(
		`UPDATE books SET quantity = quantity + 1, available = 1 WHERE id=?`, bookID); err != nil {
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}

	rec.Returned = true
	rec.ReturnDate = &now
	rec.LateFee = float64(feeCents) / 100
	return &rec, nil
}

// GetBorrowedBooks returns the books the borrower currently holds.
func (d *Database) GetBorrowedBooks(borrowerID string) ([]*Book, error) {
	rows, err := d.db.Query(
		`SELECT DISTINCT b.id,b.title,b.author,b.isbn,b.category,b.description,b.cover_image,b.publication_year,b.total_copies,b.quantity,b.available
         FROM borrow_records r
         JOIN books b ON b.id = r.book_id
         WHERE r.borrower_id=? AND r.returned=0
         ORDER BY b.title`, borrowerID)
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

// GetAllBorrowedBooks returns every open loan joined with its book, late
// fees computed fresh against the current instant. Records whose book was
// deleted are dropped silently.
func (d *Database) GetAllBorrowedBooks() ([]Loan, error) {
	now := d.now()
	rows, err := d.db.Query(
		`SELECT r.id, r.book_id, r.borrower_id, r.borrow_at, r.due_at,
                b.id,b.title,b.author,b.isbn,b.category,b.description,b.cover_image,b.publication_year,b.total_copies,b.quantity,b.available
         FROM borrow_records r
         JOIN books b ON b.id = r.book_id
         WHERE r.returned=0
         ORDER BY r.due_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var loans []Loan
	for rows.Next() {
		var l Loan
		var borrowMs, dueMs int64
		err := rows.Scan(&l.Record.ID, &l.Record.BookID, &l.Record.BorrowerID, &borrowMs, &dueMs,
			&l.Book.ID, &l.Book.Title, &l.Book.Author, &l.Book.ISBN, &l.Book.Category,
			&l.Book.Description, &l.Book.CoverImage, &l.Book.PublicationYear,
			&l.Book.TotalCopies, &l.Book.Quantity, &l.Book.Available)
		if err != nil {
			return nil, err
		}
		l.Record.BorrowDate = fromMillis(borrowMs)
		l.Record.DueDate = fromMillis(dueMs)
		l.Record.LateFee = CalculateLateFee(l.Record.DueDate, now)
		loans = append(loans, l)
	}
	return loans, rows.Err()
}

// GetActiveLoansCount counts open records, orphaned or not.
func (d *Database) GetActiveLoansCount() (int, error) {
	var n int
	err := d.db.QueryRow(`SELECT COUNT(*) FROM borrow_records WHERE returned=0`).Scan(&n)
	return n, err
}

// RefreshLateFees recomputes the stored fee snapshot on every overdue open
// record so display reads are never more than one sweep interval stale.
// The sweep is idempotent; returned records are never touched. It reports
// how many rows changed.
func (d *Database) RefreshLateFees() (int, error) {
	now := d.now()

	tx, err := d.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	rows, err := tx.Query(
		`SELECT id, due_at, late_fee_cents FROM borrow_records WHERE returned=0 AND due_at < ?`,
		toMillis(now))
	if err != nil {
		return 0, err
	}

	type update struct {
		id    string
		cents int64
	}
	var updates []update
	for rows.Next() {
		var id string
		var dueMs, stored int64
		if err := rows.Scan(&id, &dueMs, &stored); err != nil {
			rows.Close()
			return 0, err
		}
		if cents := lateFeeCents(fromMillis(dueMs), now); cents != stored {
			updates = append(updates, update{id, cents})
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return 0, err
	}
	rows.Close()

	for _, u := range updates {
		if _, err := tx.Exec(`UPDATE borrow_records SET late_fee_cents=? WHERE id=?`, u.cents, u.id); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return len(updates), nil
}

// GetBorrowRecord fetches one record by id, mainly for tests and audits.
func (d *Database) GetBorrowRecord(id string) (*BorrowRecord, error) {
	var rec BorrowRecord
	var borrowMs, dueMs, feeCents int64
	var returnMs sql.NullInt64
	err := d.db.QueryRow(
		`SELECT id, book_id, borrower_id, borrow_at, due_at, return_at, returned, late_fee_cents
         FROM borrow_records WHERE id=?`, id).
		Scan(&rec.ID, &rec.BookID, &rec.BorrowerID, &borrowMs, &dueMs, &returnMs, &rec.Returned, &feeCents)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("borrow record %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	rec.BorrowDate = fromMillis(borrowMs)
	rec.DueDate = fromMillis(dueMs)
	rec.ReturnDate = fromMillisPtr(returnMs)
	rec.LateFee = float64(feeCents) / 100
	return &rec, nil
}
