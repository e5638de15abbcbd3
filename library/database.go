package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LoanPeriod is how long a borrower may keep a copy before late fees accrue.
const LoanPeriod = 14 * 24 * time.Hour

// FeeRefreshInterval is how often the background sweep recomputes the
// stored late fee on open records.
const FeeRefreshInterval = 24 * time.Hour

// Database provides high-level helpers around a SQLite connection. It owns
// the four persisted collections: books, borrow records, users and
// notifications. Every mutating helper commits before returning, so an
// external reader never observes an in-memory state that has not reached
// the database file.
type Database struct {
	db *sql.DB

	// now is replaceable in tests so temporal logic runs against a fixed
	// instant. Production always uses UTC wall-clock time.
	now func() time.Time

	addNotificationStmt *sql.Stmt
}

// NewDatabase opens (or creates) the SQLite database at dbPath, applies
// schema migrations, and prepares common statements.
func NewDatabase(dbPath string) (*Database, error) {
	// Ensure directory exists so first-run succeeds.
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	// Enable busy_timeout and foreign keys.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=1", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}

	database := &Database{
		db:  db,
		now: func() time.Time { return time.Now().UTC() },
	}
	if err := database.prepareStatements(); err != nil {
		db.Close()
		return nil, err
	}
	return database, nil
}

// Close releases prepared statements and closes the DB.
func (d *Database) Close() error {
	if d.addNotificationStmt != nil {
		d.addNotificationStmt.Close()
	}
	return d.db.Close()
}

// ---------------------------------------------------------------------------
// Schema migration
// ---------------------------------------------------------------------------

const schemaVersion = 1

func applyMigrations(db *sql.DB) error {
	// WAL improves write concurrency.
	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return fmt.Errorf("enable WAL: %w", err)
	}

	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS meta (key TEXT PRIMARY KEY, value TEXT);`); err != nil {
		return err
	}

	var current int
	_ = db.QueryRow(`SELECT value FROM meta WHERE key='schema_version';`).Scan(&current)
	if current >= schemaVersion {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS books (
            id TEXT PRIMARY KEY,
            title TEXT NOT NULL,
            author TEXT NOT NULL,
            isbn TEXT NOT NULL DEFAULT '',
            category TEXT NOT NULL DEFAULT '',
            description TEXT NOT NULL DEFAULT '',
            cover_image TEXT NOT NULL DEFAULT '',
            publication_year INTEGER NOT NULL DEFAULT 0,
            total_copies INTEGER NOT NULL,
            quantity INTEGER NOT NULL CHECK (quantity >= 0),
            available BOOLEAN NOT NULL DEFAULT 1
        );`,
		// No foreign key on book_id: deleting a book must succeed and leave
		// its open records behind as orphans, filtered out on read.
		// Timestamps are Unix milliseconds so round-trips are exact.
		`CREATE TABLE IF NOT EXISTS borrow_records (
            id TEXT PRIMARY KEY,
            book_id TEXT NOT NULL,
            borrower_id TEXT NOT NULL,
            borrow_at INTEGER NOT NULL,
            due_at INTEGER NOT NULL,
            return_at INTEGER,
            returned BOOLEAN NOT NULL DEFAULT 0,
            late_fee_cents INTEGER NOT NULL DEFAULT 0 CHECK (late_fee_cents >= 0)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_records_open
            ON borrow_records (book_id, borrower_id) WHERE returned = 0;`,
		`CREATE TABLE IF NOT EXISTS users (
            id TEXT PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role TEXT NOT NULL CHECK (role IN ('librarian','student'))
        );`,
		`CREATE TABLE IF NOT EXISTS notifications (
            id TEXT PRIMARY KEY,
            user_id TEXT NOT NULL,
            message TEXT NOT NULL,
            created_at INTEGER NOT NULL,
            is_read BOOLEAN NOT NULL DEFAULT 0,
            kind TEXT NOT NULL DEFAULT 'general'
        );`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user
            ON notifications (user_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}

	if _, err := tx.Exec(
		`INSERT INTO meta(key,value) VALUES('schema_version',?)
            ON CONFLICT(key) DO UPDATE SET value=excluded.value;`, schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Prepared statements
// ---------------------------------------------------------------------------

func (d *Database) prepareStatements() error {
	var err error
	if d.addNotificationStmt, err = d.db.Prepare(
		`INSERT INTO notifications(id,user_id,message,created_at,is_read,kind)
         VALUES(?,?,?,?,0,?)`); err != nil {
		return err
	}
	return nil
}

// ---------------------------------------------------------------------------
// Time helpers
// ---------------------------------------------------------------------------

func toMillis(t time.Time) int64 { return t.UnixMilli() }

func fromMillis(ms int64) time.Time { return time.UnixMilli(ms).UTC() }

func fromMillisPtr(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := fromMillis(ms.Int64)
	return &t
}
