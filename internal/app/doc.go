// Package app provides application initialization and lifecycle management
// for the sales dashboard server. It handles the orchestration of all major
// components including configuration loading, dataset loading, service
// initialization, and graceful shutdown procedures.
//
// # Initialization Flow
//
// The typical initialization sequence:
//
//  1. Load configuration from environment and files
//  2. Initialize logging and observability
//  3. Load the sales dataset into the canonical table
//  4. Initialize services with their dependencies
//  5. Set up HTTP handlers and middleware
//  6. Configure and start the HTTP server
//  7. Set up graceful shutdown handlers
//
// # Usage
//
// The main entry point is typically:
//
//	application, err := app.NewApplication()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := application.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
// # Graceful Shutdown
//
// The package handles SIGINT and SIGTERM signals to ensure active
// requests are completed, telemetry is flushed, and the log file is
// closed before exit.
//
// # Error Handling
//
// All initialization errors are returned to the caller for proper
// handling. The app does not call os.Exit() directly, allowing
// the main function to control the exit process.
package app
