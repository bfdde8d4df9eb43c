package main

import (
	"database/sql"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/cgillinger/facebook-stats/internal/repository/postgres"

	_ "github.com/lib/pq"
)

func main() {
	listOnly := false
	for _, a := range os.Args[1:] {
		if a == "--list" {
			listOnly = true
		}
	}

	if listOnly {
		files, err := fs.Glob(postgres.Migrations(), "migrations/*.up.sql")
		if err != nil {
			log.Fatal(err)
		}
		for _, f := range files {
			fmt.Println(" ", f)
		}
		fmt.Printf("Total: %d migrations\n", len(files))
		return
	}

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		log.Fatalf("connect: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("ping: %v", err)
	}
	log.Println("Connected to database")

	version, err := postgres.Migrate(db)
	if err != nil {
		log.Fatalf("migrate: %v", err)
	}
	log.Printf("Migrations complete, schema version %d", version)
}
