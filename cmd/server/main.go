// Package main implements the entry point for the task API server,
// which handles users' task lists with authenticated CRUD, filtered
// listing and bulk CSV import/export.
package main

import (
	"log"
)

// main is the entry point for the task-api server.
// It loads configuration, sets up logging, connects to the database,
// runs pending migrations, wires the dependencies and serves HTTP until
// the process receives a termination signal.
func main() {
	app, err := initializeApp()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}
	defer app.Close()

	if err := app.Run(); err != nil {
		log.Fatalf("Server terminated with error: %v", err)
	}
}
