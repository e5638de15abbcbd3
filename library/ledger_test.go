package library

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

var feeEpoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func TestCalculateLateFee(t *testing.T) {
	due := feeEpoch

	cases := []struct {
		name string
		asOf time.Time
		want float64
	}{
		{"well before due", due.Add(-72 * time.Hour), 0},
		{"exactly at due", due, 0},
		{"one minute over", due.Add(time.Minute), 0.50},
		{"just under a day", due.Add(24*time.Hour - time.Millisecond), 0.50},
		{"exactly one day", due.Add(24 * time.Hour), 0.50},
		{"a day and a millisecond", due.Add(24*time.Hour + time.Millisecond), 1.00},
		{"three days", due.Add(72 * time.Hour), 1.50},
		{"ten and a half days", due.Add(252 * time.Hour), 5.50},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, CalculateLateFee(due, tc.asOf), 1e-9)
		})
	}
}

func TestBorrowLastCopyScenario(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Only Copy", 1)

	rec, err := db.BorrowBook(book.ID, "student-a")
	require.NoError(t, err)
	require.Equal(t, book.ID, rec.BookID)
	require.False(t, rec.Returned)
	require.Zero(t, rec.LateFee)

	stored, err := db.GetBook(book.ID)
	require.NoError(t, err)
	require.False(t, stored.Available)
	require.Zero(t, stored.Quantity)

	// Student B hits an empty shelf; nothing changes.
	_, err = db.BorrowBook(book.ID, "student-b")
	require.ErrorIs(t, err, ErrUnavailable)
	after, err := db.GetBook(book.ID)
	require.NoError(t, err)
	require.Equal(t, stored.Quantity, after.Quantity)
	count, err := db.GetActiveLoansCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)

	closed, err := db.ReturnBook(book.ID, "student-a")
	require.NoError(t, err)
	require.True(t, closed.Returned)
	require.NotNil(t, closed.ReturnDate)

	restored, err := db.GetBook(book.ID)
	require.NoError(t, err)
	require.True(t, restored.Available)
	require.Equal(t, 1, restored.Quantity)

	count, err = db.GetActiveLoansCount()
	require.NoError(t, err)
	require.Zero(t, count)
}

func TestBorrowDuplicatePair(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Popular", 5)

	_, err := db.BorrowBook(book.ID, "alice")
	require.NoError(t, err)

	_, err = db.BorrowBook(book.ID, "alice")
	require.ErrorIs(t, err, ErrAlreadyBorrowed)

	// Returning closes the pair and clears the way for a fresh loan.
	_, err = db.ReturnBook(book.ID, "alice")
	require.NoError(t, err)
	_, err = db.BorrowBook(book.ID, "alice")
	require.NoError(t, err)
}

func TestBorrowMissingBook(t *testing.T) {
	db := tempDB(t)
	_, err := db.BorrowBook("ghost", "alice")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestReturnWithoutLoan(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Unborrowed", 1)

	_, err := db.ReturnBook(book.ID, "alice")
	require.ErrorIs(t, err, ErrNoActiveLoan)
}

func TestReturnComputesFinalFee(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Overdue", 1)

	borrowedAt := feeEpoch
	setClock(db, borrowedAt)
	rec, err := db.BorrowBook(book.ID, "alice")
	require.NoError(t, err)

	// Three days past due at return time.
	setClock(db, borrowedAt.Add(LoanPeriod+72*time.Hour))
	closed, err := db.ReturnBook(book.ID, "alice")
	require.NoError(t, err)
	require.InDelta(t, 1.50, closed.LateFee, 1e-9)

	// The closed record keeps its final fee even as time moves on.
	setClock(db, borrowedAt.Add(LoanPeriod+720*time.Hour))
	_, err = db.RefreshLateFees()
	require.NoError(t, err)
	stored, err := db.GetBorrowRecord(rec.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.50, stored.LateFee, 1e-9)
}

func TestGetAllBorrowedBooksComputesFreshFees(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Listed", 1)

	setClock(db, feeEpoch)
	_, err := db.BorrowBook(book.ID, "alice")
	require.NoError(t, err)

	// Three days overdue when the joined view is read.
	setClock(db, feeEpoch.Add(LoanPeriod+72*time.Hour))
	loans, err := db.GetAllBorrowedBooks()
	require.NoError(t, err)
	require.Len(t, loans, 1)
	require.Equal(t, "Listed", loans[0].Book.Title)
	require.InDelta(t, 1.50, loans[0].Record.LateFee, 1e-9)
}

func TestDeletedBookLeavesOrphanedRecords(t *testing.T) {
	db := tempDB(t)
	book := mustAddBook(t, db, "Doomed", 1)

	_, err := db.BorrowBook(book.ID, "alice")
	require.NoError(t, err)
	require.NoError(t, db.DeleteBook(book.ID))

	// Joined views drop the orphan silently; the raw count still sees it.
	loans, err := db.GetAllBorrowedBooks()
	require.NoError(t, err)
	require.Empty(t, loans)

	books, err := db.GetBorrowedBooks("alice")
	require.NoError(t, err)
	require.Empty(t, books)

	count, err := db.GetActiveLoansCount()
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

func TestRefreshLateFeesSweep(t *testing.T) {
	db := tempDB(t)
	overdue := mustAddBook(t, db, "Overdue", 1)
	onTime := mustAddBook(t, db, "On Time", 1)

	setClock(db, feeEpoch)
	overdueRec, err := db.BorrowBook(overdue.ID, "alice")
	require.NoError(t, err)

	// Bob borrows twelve days later, so only Alice is overdue at sweep time.
	setClock(db, feeEpoch.Add(12*24*time.Hour))
	onTimeRec, err := db.BorrowBook(onTime.ID, "bob")
	require.NoError(t, err)

	// Sixteen days after Alice borrowed: two days past her due date.
	setClock(db, feeEpoch.Add(16*24*time.Hour))
	n, err := db.RefreshLateFees()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	stored, err := db.GetBorrowRecord(overdueRec.ID)
	require.NoError(t, err)
	require.InDelta(t, 1.00, stored.LateFee, 1e-9)

	untouched, err := db.GetBorrowRecord(onTimeRec.ID)
	require.NoError(t, err)
	require.Zero(t, untouched.LateFee)

	// Idempotent within the same instant.
	n, err = db.RefreshLateFees()
	require.NoError(t, err)
	require.Zero(t, n)
}
