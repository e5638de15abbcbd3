package library

import (
	"path/filepath"
	"testing"
	"time"
)

func tempDB(t *testing.T) *Database {
	t.Helper()
	db, err := NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("new db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setClock pins the database clock to a fixed instant.
func setClock(d *Database, at time.Time) {
	d.now = func() time.Time { return at }
}

func mustAddBook(t *testing.T, d *Database, title string, copies int) *Book {
	t.Helper()
	b, err := d.AddBook(BookFields{Title: title, Author: "Test Author", Quantity: copies})
	if err != nil {
		t.Fatalf("add book: %v", err)
	}
	return b
}

func TestMigrationsAreIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustAddBook(t, db, "Survivor", 1)
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	books, err := db.GetAllBooks()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(books) != 1 || books[0].Title != "Survivor" {
		t.Fatalf("data lost across reopen: %+v", books)
	}
}

// TestTimestampRoundTrip verifies that persisting and reloading a borrow
// record preserves every timestamp at millisecond precision.
func TestTimestampRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.db")

	db, err := NewDatabase(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	at := time.Date(2026, 3, 14, 15, 9, 26, 535_000_000, time.UTC)
	setClock(db, at)

	book := mustAddBook(t, db, "Round Trip", 1)
	rec, err := db.BorrowBook(book.ID, "student-1")
	if err != nil {
		t.Fatalf("borrow: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	db, err = NewDatabase(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer db.Close()

	got, err := db.GetBorrowRecord(rec.ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if !got.BorrowDate.Equal(rec.BorrowDate) {
		t.Fatalf("borrow date drifted: want %v, got %v", rec.BorrowDate, got.BorrowDate)
	}
	if !got.DueDate.Equal(rec.DueDate) {
		t.Fatalf("due date drifted: want %v, got %v", rec.DueDate, got.DueDate)
	}
	if want := at.Add(LoanPeriod); !got.DueDate.Equal(want) {
		t.Fatalf("due date not borrow+14d: want %v, got %v", want, got.DueDate)
	}
	if got.Returned || got.ReturnDate != nil {
		t.Fatalf("record should still be open: %+v", got)
	}
}
