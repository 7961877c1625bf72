/*
library - Command line entry point for the library engine

COMMANDS:
  serve                       Run the HTTP API and the overdue sweeper
  sweep                       Run one overdue sweep and exit
  report <kind>               Write a PDF report (top-books, top-users, overdue)
  report summary              Print the dashboard counters
  user create                 Create an account (prompts for the password)
  user list                   List accounts
  user reset-password <email> Replace a password with a generated one

CONFIGURATION:
  Environment variables, optionally from ./.env. See config/config.go.
  --db overrides LIBRARY_DB for a single invocation.

EXAMPLES:
  # First administrator
  library user create --name "Ada" --email ada@example.org --role ADMINISTRATOR

  # Serve on another port
  HTTP_PORT=3000 library serve

  # In-memory database for a quick look
  library --db=":memory:" report summary
*/
package main

func main() {
	Execute()
}
