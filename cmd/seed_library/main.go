package main

import (
	"fmt"
	"os"

	"library-tracker/library"

	jsoniter "github.com/json-iterator/go"
)

// seedData is the demo catalog and directory loaded into a fresh database.
// Passwords are intentionally weak demo credentials.
const seedData = `{
  "books": [
    {
      "title": "The Design of Everyday Things",
      "author": "Don Norman",
      "isbn": "978-0465050659",
      "category": "Design",
      "description": "A powerful primer on how and why some products satisfy customers while others only frustrate them.",
      "cover_image": "https://images.unsplash.com/photo-1541963463532-d68292c34b19",
      "publication_year": 2013,
      "quantity": 3
    },
    {
      "title": "Atomic Habits",
      "author": "James Clear",
      "isbn": "978-1847941831",
      "category": "Self-Help",
      "description": "An easy and proven way to build good habits and break bad ones.",
      "cover_image": "https://images.unsplash.com/photo-1543002588-bfa74002ed7e",
      "publication_year": 2018,
      "quantity": 5
    },
    {
      "title": "Thinking, Fast and Slow",
      "author": "Daniel Kahneman",
      "isbn": "978-0141033570",
      "category": "Psychology",
      "description": "Why we make the choices we do, and how we can make better ones.",
      "cover_image": "https://images.unsplash.com/photo-1532012197267-da84d127e765",
      "publication_year": 2011,
      "quantity": 2
    },
    {
      "title": "Sapiens: A Brief History of Humankind",
      "author": "Yuval Noah Harari",
      "isbn": "978-0099590088",
      "category": "History",
      "description": "How Homo sapiens became Earth's dominant species.",
      "cover_image": "https://images.unsplash.com/photo-1589998059171-988d887df646",
      "publication_year": 2014,
      "quantity": 4
    },
    {
      "title": "The Alchemist",
      "author": "Paulo Coelho",
      "isbn": "978-0722532935",
      "category": "Fiction",
      "description": "A magical story about following your dreams.",
      "cover_image": "https://images.unsplash.com/photo-1544947950-fa07a98d237f",
      "publication_year": 1988,
      "quantity": 8
    }
  ],
  "users": [
    {
      "name": "Admin Librarian",
      "email": "admin@library.com",
      "password": "admin",
      "role": "librarian"
    },
    {
      "name": "John Student",
      "email": "student@library.com",
      "password": "student",
      "role": "student"
    }
  ]
}`

type seedUser struct {
	Name     string       `json:"name"`
	Email    string       `json:"email"`
	Password string       `json:"password"`
	Role     library.Role `json:"role"`
}

type seedFile struct {
	Books []library.BookFields `json:"books"`
	Users []seedUser           `json:"users"`
}

func main() {
	dbPath := "library.db"
	if len(os.Args) > 1 {
		dbPath = os.Args[1]
	}

	// Clean up any existing database files so the seed starts fresh.
	fmt.Println("Cleaning up existing database files...")
	for _, file := range []string{dbPath, dbPath + "-shm", dbPath + "-wal"} {
		if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
			fmt.Printf("Warning: Could not remove %s: %v\n", file, err)
		}
	}

	db, err := library.NewDatabase(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating database: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	var seed seedFile
	if err := jsoniter.ConfigCompatibleWithStandardLibrary.UnmarshalFromString(seedData, &seed); err != nil {
		fmt.Fprintf(os.Stderr, "Error decoding seed data: %v\n", err)
		os.Exit(1)
	}

	successCount := 0
	errorCount := 0

	for _, fields := range seed.Books {
		fmt.Printf("Adding: %s by %s... ", fields.Title, fields.Author)
		if _, err := db.AddBook(fields); err != nil {
			fmt.Printf("failed: %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("ok")
		successCount++
	}

	for _, u := range seed.Users {
		fmt.Printf("Registering: %s <%s> (%s)... ", u.Name, u.Email, u.Role)
		if _, err := db.RegisterUser(u.Name, u.Email, u.Password, u.Role); err != nil {
			fmt.Printf("failed: %v\n", err)
			errorCount++
			continue
		}
		fmt.Println("ok")
		successCount++
	}

	fmt.Printf("\nSeed complete: %d succeeded, %d failed. Database at %s\n", successCount, errorCount, dbPath)
}
