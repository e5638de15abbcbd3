package main

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"

	"library-tracker/library"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/term"
)

var flagDB string

var rootCmd = &cobra.Command{
	Use:           "library-tracker",
	Short:         "Track a library's catalog, loans, late fees and reminders",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runShell(viper.GetString("db"))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "library.db", "Path to the SQLite database file")
	viper.BindPFlag("db", rootCmd.PersistentFlags().Lookup("db"))
	viper.SetEnvPrefix("library")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
		os.Exit(1)
	}
}

// readPassword securely reads a password with masking.
func readPassword(prompt string) (string, error) {
	fmt.Print(prompt)
	bytePassword, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	fmt.Println()
	return strings.TrimSpace(string(bytePassword)), nil
}

func runShell(dbPath string) error {
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	manager, err := library.NewLibraryManager(dbPath, log)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer manager.Close()

	manager.StartFeeSweeper(library.FeeRefreshInterval)

	scanner := bufio.NewScanner(os.Stdin)

	fmt.Println("Library lending tracker. Available commands:")
	fmt.Println("  Session:       login, logout, whoami")
	fmt.Println("  Catalog:       list books, add book, update quantity, delete book")
	fmt.Println("  Circulation:   borrow, return, my books, loans, stats")
	fmt.Println("  Notifications: notifications, notify, mark read, remind due, remind date")
	fmt.Println("  System:        exit")

	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		cmd := strings.TrimSpace(scanner.Text())

		var err error
		switch cmd {
		case "login":
			err = handleLogin(scanner, manager)
		case "logout":
			manager.Logout()
			fmt.Println("Logged out.")
		case "whoami":
			handleWhoami(manager)
		case "list books":
			err = handleListBooks(manager)
		case "add book":
			err = handleAddBook(scanner, manager)
		case "update quantity":
			err = handleUpdateQuantity(scanner, manager)
		case "delete book":
			err = handleDeleteBook(scanner, manager)
		case "borrow":
			err = handleBorrow(scanner, manager)
		case "return":
			err = handleReturn(scanner, manager)
		case "my books":
			err = handleMyBooks(manager)
		case "loans":
			err = handleLoans(manager)
		case "stats":
			err = handleStats(manager)
		case "notifications":
			err = handleNotifications(manager)
		case "notify":
			err = handleNotify(scanner, manager)
		case "mark read":
			err = handleMarkRead(scanner, manager)
		case "remind due":
			err = handleRemindDue(manager)
		case "remind date":
			err = handleRemindDate(scanner, manager)
		case "exit":
			fmt.Println("Goodbye!")
			return nil
		default:
			fmt.Println("Unknown command. Type one of the available commands listed above.")
		}
		if err != nil {
			fmt.Println(color.RedString("error:"), err)
		}
	}
	return nil
}

func prompt(sc *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !sc.Scan() {
		return "", false
	}
	return strings.TrimSpace(sc.Text()), true
}

func handleLogin(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	email, ok := prompt(sc, "Email: ")
	if !ok {
		return nil
	}
	password, err := readPassword("Password: ")
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	u, err := mgr.Login(email, password)
	if err != nil {
		return err
	}
	fmt.Printf("Welcome, %s (%s).\n", u.Name, u.Role)
	return nil
}

func handleWhoami(mgr *library.LibraryManager) {
	if u := mgr.CurrentUser(); u != nil {
		fmt.Printf("%s <%s> role=%s\n", u.Name, u.Email, u.Role)
	} else {
		fmt.Println("Not logged in.")
	}
}

func handleListBooks(mgr *library.LibraryManager) error {
	books, err := mgr.GetAllBooks()
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("The catalog is empty.")
		return nil
	}
	for _, b := range books {
		fmt.Printf("%-36s  %-35s %-22s free %d/%d  available=%t\n",
			b.ID, b.Title, b.Author, b.Quantity, b.TotalCopies, b.Available)
	}
	return nil
}

func handleAddBook(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	var fields library.BookFields
	var ok bool
	if fields.Title, ok = prompt(sc, "Title: "); !ok {
		return nil
	}
	if fields.Author, ok = prompt(sc, "Author: "); !ok {
		return nil
	}
	if fields.ISBN, ok = prompt(sc, "ISBN (optional): "); !ok {
		return nil
	}
	if fields.Category, ok = prompt(sc, "Category (optional): "); !ok {
		return nil
	}
	year, ok := prompt(sc, "Publication year (optional): ")
	if !ok {
		return nil
	}
	if year != "" {
		y, err := strconv.Atoi(year)
		if err != nil {
			return fmt.Errorf("invalid year %q", year)
		}
		fields.PublicationYear = y
	}
	qty, ok := prompt(sc, "Copies: ")
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(qty)
	if err != nil {
		return fmt.Errorf("invalid copy count %q", qty)
	}
	fields.Quantity = n

	b, err := mgr.AddBook(fields)
	if err != nil {
		return err
	}
	fmt.Printf("Added %q with %d copies (id %s).\n", b.Title, b.Quantity, b.ID)
	return nil
}

func handleUpdateQuantity(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return nil
	}
	b, err := mgr.GetBookByID(id)
	if err != nil {
		return err
	}
	qty, ok := prompt(sc, fmt.Sprintf("Free copies (currently %d): ", b.Quantity))
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(qty)
	if err != nil {
		return fmt.Errorf("invalid copy count %q", qty)
	}
	b.Quantity = n
	if n > b.TotalCopies {
		b.TotalCopies = n
	}
	if err := mgr.UpdateBook(b); err != nil {
		return err
	}
	fmt.Printf("Updated %q.\n", b.Title)
	return nil
}

func handleDeleteBook(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return nil
	}
	if err := mgr.DeleteBook(id); err != nil {
		return err
	}
	fmt.Println("Book removed from the catalog.")
	return nil
}

func currentUserID(mgr *library.LibraryManager) (string, error) {
	u := mgr.CurrentUser()
	if u == nil {
		return "", fmt.Errorf("login required")
	}
	return u.ID, nil
}

func handleBorrow(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return nil
	}
	studentID, err := currentUserID(mgr)
	if err != nil {
		return err
	}
	rec, err := mgr.BorrowBook(id, studentID)
	if err != nil {
		return err
	}
	fmt.Printf("Borrowed. Due on %s.\n", rec.DueDate.Format("Jan 2, 2006"))
	return nil
}

func handleReturn(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok := prompt(sc, "Book ID: ")
	if !ok {
		return nil
	}
	studentID, err := currentUserID(mgr)
	if err != nil {
		return err
	}
	rec, err := mgr.ReturnBook(id, studentID)
	if err != nil {
		return err
	}
	if rec.LateFee > 0 {
		fmt.Printf("Returned. Late fee owed: $%.2f\n", rec.LateFee)
	} else {
		fmt.Println("Returned on time. Thank you!")
	}
	return nil
}

func handleMyBooks(mgr *library.LibraryManager) error {
	studentID, err := currentUserID(mgr)
	if err != nil {
		return err
	}
	books, err := mgr.GetBorrowedBooks(studentID)
	if err != nil {
		return err
	}
	if len(books) == 0 {
		fmt.Println("You have no books checked out.")
		return nil
	}
	for _, b := range books {
		fmt.Printf("%-36s  %s by %s\n", b.ID, b.Title, b.Author)
	}
	return nil
}

func handleLoans(mgr *library.LibraryManager) error {
	loans, err := mgr.GetAllBorrowedBooks()
	if err != nil {
		return err
	}
	if len(loans) == 0 {
		fmt.Println("No open loans.")
		return nil
	}
	for _, l := range loans {
		fee := ""
		if l.Record.LateFee > 0 {
			fee = color.RedString(" late fee $%.2f", l.Record.LateFee)
		}
		fmt.Printf("%-35s borrower %-36s due %s%s\n",
			l.Book.Title, l.Record.BorrowerID, l.Record.DueDate.Format("Jan 2, 2006"), fee)
	}
	return nil
}

func handleStats(mgr *library.LibraryManager) error {
	students, err := mgr.GetStudentCount()
	if err != nil {
		return err
	}
	loans, err := mgr.GetActiveLoansCount()
	if err != nil {
		return err
	}
	fmt.Printf("Registered students: %d\nActive loans: %d\n", students, loans)
	return nil
}

func handleNotifications(mgr *library.LibraryManager) error {
	userID, err := currentUserID(mgr)
	if err != nil {
		return err
	}
	notes, err := mgr.GetUserNotifications(userID)
	if err != nil {
		return err
	}
	if len(notes) == 0 {
		fmt.Println("No notifications.")
		return nil
	}
	for _, n := range notes {
		status := "unread"
		if n.Read {
			status = "read"
		}
		fmt.Printf("%-36s [%s, %s] %s\n", n.ID, n.Kind, status, n.Message)
	}
	return nil
}

func handleNotify(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	userID, ok := prompt(sc, "Recipient user ID: ")
	if !ok {
		return nil
	}
	message, ok := prompt(sc, "Message: ")
	if !ok {
		return nil
	}
	if _, err := mgr.SendNotification(userID, message, library.KindGeneral); err != nil {
		return err
	}
	fmt.Println("Notification sent.")
	return nil
}

func handleMarkRead(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	id, ok := prompt(sc, "Notification ID: ")
	if !ok {
		return nil
	}
	if err := mgr.MarkNotificationAsRead(id); err != nil {
		return err
	}
	fmt.Println("Marked as read.")
	return nil
}

func handleRemindDue(mgr *library.LibraryManager) error {
	n, err := mgr.SendDueDateReminders()
	if err != nil {
		return err
	}
	fmt.Printf("Sent %d due-date reminder(s).\n", n)
	return nil
}

func handleRemindDate(sc *bufio.Scanner, mgr *library.LibraryManager) error {
	raw, ok := prompt(sc, "Target date (YYYY-MM-DD): ")
	if !ok {
		return nil
	}
	target, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", raw)
	}
	message, ok := prompt(sc, "Custom message (optional): ")
	if !ok {
		return nil
	}
	n, err := mgr.SendCustomDateReminders(target, message)
	if err != nil {
		return err
	}
	fmt.Printf("Sent %d reminder(s).\n", n)
	return nil
}
