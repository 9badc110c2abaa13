package main

import (
	"github.com/joho/godotenv"

	"passage/internal/cli"
)

func main() {
	// A missing .env is fine; API keys may come from the real environment.
	_ = godotenv.Load()

	cli.Execute()
}
