package library

import "time"

// Role determines which operations a logged-in user may perform.
type Role string

const (
	RoleLibrarian Role = "librarian"
	RoleStudent   Role = "student"
)

// NotificationKind is a closed set of notification categories. The engine
// itself only produces due_date and custom_reminder entries; the other two
// exist for callers that create notifications directly.
type NotificationKind string

const (
	KindDueDate        NotificationKind = "due_date"
	KindOverdue        NotificationKind = "overdue"
	KindCustomReminder NotificationKind = "custom_reminder"
	KindGeneral        NotificationKind = "general"
)

// Book represents a catalog entry. Quantity is the count of free copies,
// not the total owned; Available always mirrors Quantity > 0. BorrowedBy
// is derived from open borrow records, never stored.
type Book struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Author          string   `json:"author"`
	ISBN            string   `json:"isbn"`
	Category        string   `json:"category"`
	Description     string   `json:"description"`
	CoverImage      string   `json:"cover_image"`
	PublicationYear int      `json:"publication_year"`
	TotalCopies     int      `json:"total_copies"`
	Quantity        int      `json:"quantity"`
	Available       bool     `json:"available"`
	BorrowedBy      []string `json:"borrowed_by,omitempty"`
}

// BookFields is the caller-supplied portion of a new catalog entry.
type BookFields struct {
	Title           string `json:"title" validate:"required"`
	Author          string `json:"author" validate:"required"`
	ISBN            string `json:"isbn"`
	Category        string `json:"category"`
	Description     string `json:"description"`
	CoverImage      string `json:"cover_image"`
	PublicationYear int    `json:"publication_year" validate:"omitempty,gte=0,lte=2100"`
	Quantity        int    `json:"quantity" validate:"required,gt=0"`
}

// BorrowRecord is one lending transaction. At most one open (Returned ==
// false) record exists per (BookID, BorrowerID) pair at a time.
type BorrowRecord struct {
	ID         string     `json:"id"`
	BookID     string     `json:"book_id"`
	BorrowerID string     `json:"borrower_id"`
	BorrowDate time.Time  `json:"borrow_date"`
	DueDate    time.Time  `json:"due_date"`
	ReturnDate *time.Time `json:"return_date,omitempty"`
	Returned   bool       `json:"returned"`
	LateFee    float64    `json:"late_fee"`
}

// User is a directory identity with the credential stripped.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

// Notification is a message directed at one user.
type Notification struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
	Read      bool             `json:"read"`
	Kind      NotificationKind `json:"kind"`
}

// Loan joins an open borrow record with its book for display. Record.LateFee
// is freshly computed at read time.
type Loan struct {
	Book   Book         `json:"book"`
	Record BorrowRecord `json:"borrow_record"`
}
