package library

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"
)

// LibraryManager is the single entry point UI collaborators call. It owns
// the active session, enforces the role gates, and delegates to the
// catalog, ledger, notification and directory helpers on Database.
//
// Role policy: catalog mutation and bulk reminders require a librarian
// session; borrow and return require a student session; everything else
// requires any authenticated identity.
type LibraryManager struct {
	db  *Database
	log *slog.Logger

	mu      sync.Mutex
	session *User

	sweepStop chan struct{}
	sweepDone chan struct{}
}

// NewLibraryManager opens (or creates) the SQLite database at dbPath.
// A nil logger discards output.
func NewLibraryManager(dbPath string, log *slog.Logger) (*LibraryManager, error) {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	db, err := NewDatabase(dbPath)
	if err != nil {
		return nil, err
	}
	return &LibraryManager{db: db, log: log}, nil
}

// Close stops the fee sweeper, if running, and closes the database.
func (lm *LibraryManager) Close() error {
	lm.mu.Lock()
	stop, done := lm.sweepStop, lm.sweepDone
	lm.sweepStop, lm.sweepDone = nil, nil
	lm.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return lm.db.Close()
}

// ------------------ Sessions ------------------

// Login resolves the credentials to a role-bearing identity and makes it
// the active session.
func (lm *LibraryManager) Login(email, password string) (*User, error) {
	u, err := lm.db.Authenticate(email, password)
	if err != nil {
		return nil, err
	}
	lm.mu.Lock()
	lm.session = u
	lm.mu.Unlock()
	lm.log.Info("login", "user", u.ID, "role", u.Role)
	return u, nil
}

// Logout clears the active session. Idempotent.
func (lm *LibraryManager) Logout() {
	lm.mu.Lock()
	lm.session = nil
	lm.mu.Unlock()
}

// CurrentUser returns the active session identity, or nil.
func (lm *LibraryManager) CurrentUser() *User {
	lm.mu.Lock()
	defer lm.mu.Unlock()
	return lm.session
}

// requireRole checks the session against the allowed roles; an empty list
// means any authenticated identity passes.
func (lm *LibraryManager) requireRole(roles ...Role) (*User, error) {
	lm.mu.Lock()
	u := lm.session
	lm.mu.Unlock()

	if u == nil {
		return nil, fmt.Errorf("%w: login required", ErrForbidden)
	}
	if len(roles) == 0 {
		return u, nil
	}
	for _, r := range roles {
		if u.Role == r {
			return u, nil
		}
	}
	return nil, fmt.Errorf("%w: requires role %v", ErrForbidden, roles)
}

// ------------------ Catalog (librarian) ------------------

func (lm *LibraryManager) AddBook(fields BookFields) (*Book, error) {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return nil, err
	}
	b, err := lm.db.AddBook(fields)
	if err == nil {
		lm.log.Info("book added", "id", b.ID, "title", b.Title, "copies", b.Quantity)
	}
	return b, err
}

func (lm *LibraryManager) UpdateBook(b *Book) error {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return err
	}
	return lm.db.UpdateBook(b)
}

func (lm *LibraryManager) DeleteBook(id string) error {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return err
	}
	if err := lm.db.DeleteBook(id); err != nil {
		return err
	}
	lm.log.Info("book deleted", "id", id)
	return nil
}

// RegisterUser adds a directory record. Librarian only.
func (lm *LibraryManager) RegisterUser(name, email, password string, role Role) (*User, error) {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return nil, err
	}
	return lm.db.RegisterUser(name, email, password, role)
}

// ------------------ Circulation (student) ------------------

func (lm *LibraryManager) BorrowBook(bookID, studentID string) (*BorrowRecord, error) {
	if _, err := lm.requireRole(RoleStudent); err != nil {
		return nil, err
	}
	rec, err := lm.db.BorrowBook(bookID, studentID)
	if err == nil {
		lm.log.Info("book borrowed", "book", bookID, "borrower", studentID, "due", rec.DueDate)
	}
	return rec, err
}

func (lm *LibraryManager) ReturnBook(bookID, studentID string) (*BorrowRecord, error) {
	if _, err := lm.requireRole(RoleStudent); err != nil {
		return nil, err
	}
	rec, err := lm.db.ReturnBook(bookID, studentID)
	if err == nil {
		lm.log.Info("book returned", "book", bookID, "borrower", studentID, "late_fee", rec.LateFee)
	}
	return rec, err
}

// ------------------ Reads (any authenticated identity) ------------------

func (lm *LibraryManager) GetBookByID(id string) (*Book, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.GetBook(id)
}

func (lm *LibraryManager) GetAllBooks() ([]*Book, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.GetAllBooks()
}

func (lm *LibraryManager) GetBorrowedBooks(studentID string) ([]*Book, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.GetBorrowedBooks(studentID)
}

func (lm *LibraryManager) GetAllBorrowedBooks() ([]Loan, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.GetAllBorrowedBooks()
}

func (lm *LibraryManager) GetStudentCount() (int, error) {
	if _, err := lm.requireRole(); err != nil {
		return 0, err
	}
	return lm.db.GetStudentCount()
}

func (lm *LibraryManager) GetActiveLoansCount() (int, error) {
	if _, err := lm.requireRole(); err != nil {
		return 0, err
	}
	return lm.db.GetActiveLoansCount()
}

// CalculateLateFee reports the fee a loan due at dueDate owes right now.
func (lm *LibraryManager) CalculateLateFee(dueDate time.Time) float64 {
	return CalculateLateFee(dueDate, lm.db.now())
}

// ------------------ Notifications ------------------

func (lm *LibraryManager) SendNotification(userID, message string, kind NotificationKind) (*Notification, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.SendNotification(userID, message, kind)
}

func (lm *LibraryManager) MarkNotificationAsRead(notificationID string) error {
	if _, err := lm.requireRole(); err != nil {
		return err
	}
	return lm.db.MarkNotificationAsRead(notificationID)
}

func (lm *LibraryManager) GetUserNotifications(userID string) ([]*Notification, error) {
	if _, err := lm.requireRole(); err != nil {
		return nil, err
	}
	return lm.db.GetUserNotifications(userID)
}

// SendDueDateReminders and SendCustomDateReminders are bulk operations and
// stay librarian-gated like catalog mutation.

func (lm *LibraryManager) SendDueDateReminders() (int, error) {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return 0, err
	}
	n, err := lm.db.SendDueDateReminders()
	if err == nil {
		lm.log.Info("due date reminders sent", "count", n)
	}
	return n, err
}

func (lm *LibraryManager) SendCustomDateReminders(targetDate time.Time, customMessage string) (int, error) {
	if _, err := lm.requireRole(RoleLibrarian); err != nil {
		return 0, err
	}
	n, err := lm.db.SendCustomDateReminders(targetDate, customMessage)
	if err == nil {
		lm.log.Info("custom reminders sent", "count", n, "target", targetDate)
	}
	return n, err
}

// ------------------ Background fee sweep ------------------

// StartFeeSweeper runs RefreshLateFees immediately and then on every tick
// until Close. Starting twice is a no-op.
func (lm *LibraryManager) StartFeeSweeper(interval time.Duration) {
	lm.mu.Lock()
	if lm.sweepStop != nil {
		lm.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	done := make(chan struct{})
	lm.sweepStop, lm.sweepDone = stop, done
	lm.mu.Unlock()

	go func() {
		defer close(done)
		lm.sweepOnce()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				lm.sweepOnce()
			case <-stop:
				return
			}
		}
	}()
}

func (lm *LibraryManager) sweepOnce() {
	n, err := lm.db.RefreshLateFees()
	if err != nil {
		lm.log.Error("late fee sweep failed", "err", err)
		return
	}
	if n > 0 {
		lm.log.Info("late fees refreshed", "records", n)
	}
}
