package library

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// dueSoonWindow is how far ahead SendDueDateReminders looks.
const dueSoonWindow = 3 * 24 * time.Hour

const dueDateLayout = "Jan 2, 2006"

// SendNotification appends an unread notification for the user. An empty
// kind defaults to general.
func (d *Database) SendNotification(userID, message string, kind NotificationKind) (*Notification, error) {
	if userID == "" || message == "" {
		return nil, fmt.Errorf("%w: user id and message required", ErrValidation)
	}
	if kind == "" {
		kind = KindGeneral
	}

	n := &Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Timestamp: d.now(),
		Kind:      kind,
	}
	if _, err := d.addNotificationStmt.Exec(n.ID, n.UserID, n.Message, toMillis(n.Timestamp), string(n.Kind)); err != nil {
		return nil, fmt.Errorf("send notification: %w", err)
	}
	return n, nil
}

// MarkNotificationAsRead flips the read flag. Unknown ids and already-read
// notifications are silent no-ops.
func (d *Database) MarkNotificationAsRead(id string) error {
	_, err := d.db.Exec(`UPDATE notifications SET is_read=1 WHERE id=?`, id)
	return err
}

// GetUserNotifications lists the user's notifications, newest first.
func (d *Database) GetUserNotifications(userID string) ([]*Notification, error) {
	rows, err := d.db.Query(
		`SELECT id, user_id, message, created_at, is_read, kind
         FROM notifications WHERE user_id=? ORDER BY created_at DESC, id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		var n Notification
		var createdMs int64
		var kind string
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &createdMs, &n.Read, &kind); err != nil {
			return nil, err
		}
		n.Timestamp = fromMillis(createdMs)
		n.Kind = NotificationKind(kind)
		out = append(out, &n)
	}
	return out, rows.Err()
}

// SendDueDateReminders notifies every borrower whose open loan falls due
// within the next three days (now exclusive, now+3d inclusive) and returns
// the count emitted. Repeated calls within the window re-notify; the
// engine keeps no memory of reminders already sent.
func (d *Database) SendDueDateReminders() (int, error) {
	now := d.now()
	matches, err := d.openLoansDueBetween(toMillis(now)+1, toMillis(now.Add(dueSoonWindow)))
	if err != nil {
		return 0, err
	}

	for _, m := range matches {
		msg := fmt.Sprintf("Reminder: %q is due on %s.", m.title, m.due.Format(dueDateLayout))
		if _, err := d.SendNotification(m.borrowerID, msg, KindDueDate); err != nil {
			return 0, err
		}
	}
	return len(matches), nil
}

// SendCustomDateReminders notifies borrowers of every open loan whose due
// date, compared at day granularity, is on or before targetDate. A
// non-empty customMessage replaces the generated text.
func (d *Database) SendCustomDateReminders(targetDate time.Time, customMessage string) (int, error) {
	// Truncate both sides to midnight UTC; due <= target at day
	// granularity is the same as due < next midnight after target.
	t := targetDate.UTC()
	cutoff := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)

	matches, err := d.openLoansDueBetween(0, toMillis(cutoff)-1)
	if err != nil {
		return 0, err
	}

	for _, m := range matches {
		msg := customMessage
		if msg == "" {
			msg = fmt.Sprintf("Reminder: %q is due on %s. Please return it soon to avoid late fees.",
				m.title, m.due.Format(dueDateLayout))
		}
		if _, err := d.SendNotification(m.borrowerID, msg, KindCustomReminder); err != nil {
			return 0, err
		}
	}
	return len(matches), nil
}

type reminderMatch struct {
	borrowerID string
	title      string
	due        time.Time
}

// openLoansDueBetween selects open records with fromMs <= due_at <= toMs,
// joined with their book for the message text. Orphaned records drop out
// through the join.
func (d *Database) openLoansDueBetween(fromMs, toMs int64) ([]reminderMatch, error) {
	rows, err := d.db.Query(
		`SELECT r.borrower_id, r.due_at, b.title
         FROM borrow_records r
         JOIN books b ON b.id = r.book_id
         WHERE r.returned=0 AND r.due_at >= ? AND r.due_at <= ?
         ORDER BY r.due_at`, fromMs, toMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []reminderMatch
	for rows.Next() {
		var m reminderMatch
		var dueMs int64
		if err := rows.Scan(&m.borrowerID, &dueMs, &m.title); err != nil {
			return nil, err
		}
		m.due = fromMillis(dueMs)
		out = append(out, m)
	}
	return out, rows.Err()
}
