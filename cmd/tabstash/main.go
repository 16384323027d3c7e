package main

import (
	"errors"
	"io/fs"
	"log"

	"github.com/joho/godotenv"

	"github.com/q962/tab-stash/internal/app"
)

func main() {
	// A .env next to the binary is optional; real env vars win.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("❌ failed to read .env: %v", err)
	}

	if err := app.New().Run(); err != nil {
		log.Fatalf("❌ tab-stash failed: %v", err)
	}
}
