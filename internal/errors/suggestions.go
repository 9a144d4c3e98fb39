package errors

import (
	"fmt"
	"strings"
)

// ErrorSuggestion represents a suggestion for fixing an error
type ErrorSuggestion struct {
	Title       string
	Description string
	Command     string
	Example     string
}

// ServerStartError suggests fixes for a listener that could not be opened
// on host:port. It returns nil when err is not a listen failure it knows.
func ServerStartError(err error, host string, port int) []ErrorSuggestion {
	errStr := err.Error()

	switch {
	case strings.Contains(errStr, "address already in use"):
		return []ErrorSuggestion{
			{
				Title:       "Port already in use",
				Description: fmt.Sprintf("Another process is listening on %s:%d", host, port),
				Command:     fmt.Sprintf("lsof -i :%d", port),
			},
			{
				Title:       "Let the system pick a port",
				Description: "Port 0 binds any free port; the chosen address is printed on startup",
				Command:     "folio serve --port 0",
			},
			{
				Title:       "Move folio to another port",
				Description: "Set the port once in the environment or in server.port of .folio.yml",
				Command:     fmt.Sprintf("FOLIO_SERVER_PORT=%d folio serve", nextPort(port)),
			},
		}

	case strings.Contains(errStr, "permission denied"):
		if port > 0 && port < 1024 {
			return []ErrorSuggestion{{
				Title:       "Use an unprivileged port",
				Description: fmt.Sprintf("Port %d needs elevated privileges; put a reverse proxy in front of folio instead", port),
				Command:     "FOLIO_SERVER_PORT=8080 folio serve",
			}}
		}
		return []ErrorSuggestion{{
			Title:       "Listening is not allowed",
			Description: "A sandbox or security policy refuses the listen call",
			Command:     "folio serve --port 0",
		}}

	case strings.Contains(errStr, "cannot assign requested address"),
		strings.Contains(errStr, "no such host"):
		return []ErrorSuggestion{{
			Title:       "Host is not available here",
			Description: fmt.Sprintf("%q is not an address of this machine", host),
			Command:     "folio serve --host localhost",
			Example:     "server:\n  host: 0.0.0.0",
		}}
	}

	return nil
}

func nextPort(port int) int {
	if port <= 0 || port >= 65535 {
		return 8080
	}
	return port + 1
}

// ConfigurationError generates suggestions for configuration issues
func ConfigurationError(configError string, configPath string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check configuration file",
			Description: "Verify your .folio.yml file exists and has valid syntax",
			Command:     "cat " + configPath,
		},
		{
			Title:       "Show resolved configuration",
			Description: "Print the configuration after env and flag overrides",
			Command:     "folio config show",
		},
	}

	if strings.Contains(configError, "yaml") || strings.Contains(configError, "unmarshal") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Fix YAML syntax",
			Description: "There's a syntax error in your YAML configuration",
			Example:     "Use proper indentation and avoid tabs",
		})
	}

	if strings.Contains(configError, "driver") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use a supported driver",
			Description: "database.driver must be sqlite3 or pgx",
			Example:     "database:\n  driver: sqlite3",
		})
	}

	return suggestions
}

// DatabaseError generates suggestions for a store that cannot be opened or migrated
func DatabaseError(err error, dsn string) []ErrorSuggestion {
	suggestions := []ErrorSuggestion{
		{
			Title:       "Check the database location",
			Description: "Verify the database path or URL is reachable: " + dsn,
		},
	}

	if IsMigrationError(err) {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Inspect applied migrations",
			Description: "The schema could not be brought up to date; the server will not start against it",
			Command:     "folio migrate",
		})
	}

	if strings.Contains(err.Error(), "unable to open") || strings.Contains(err.Error(), "no such file") {
		suggestions = append(suggestions, ErrorSuggestion{
			Title:       "Use an in-memory database",
			Description: "Run without a persistent database file",
			Command:     "folio serve --in-memory",
		})
	}

	return suggestions
}

// FormatSuggestions formats suggestions into a user-friendly string
func FormatSuggestions(title string, suggestions []ErrorSuggestion) string {
	if len(suggestions) == 0 {
		return title
	}

	var output strings.Builder
	output.WriteString(title + "\n\n")
	output.WriteString("Suggestions:\n")

	for i, suggestion := range suggestions {
		output.WriteString(fmt.Sprintf("  %d. %s\n", i+1, suggestion.Title))
		if suggestion.Description != "" {
			output.WriteString(fmt.Sprintf("     %s\n", suggestion.Description))
		}
		if suggestion.Command != "" {
			output.WriteString(fmt.Sprintf("     Run: %s\n", suggestion.Command))
		}
		if suggestion.Example != "" {
			output.WriteString(fmt.Sprintf("     Example: %s\n", suggestion.Example))
		}
		output.WriteString("\n")
	}

	return output.String()
}

// EnhancedError wraps an error with suggestions
type EnhancedError struct {
	OriginalError error
	Title         string
	Suggestions   []ErrorSuggestion
}

// Error implements the error interface
func (e *EnhancedError) Error() string {
	return FormatSuggestions(e.Title, e.Suggestions)
}

// Unwrap returns the original error
func (e *EnhancedError) Unwrap() error {
	return e.OriginalError
}

// NewEnhancedError creates a new enhanced error with suggestions
func NewEnhancedError(title string, originalError error, suggestions []ErrorSuggestion) *EnhancedError {
	return &EnhancedError{
		OriginalError: originalError,
		Title:         title,
		Suggestions:   suggestions,
	}
}
