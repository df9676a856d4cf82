// Package exitcode defines process exit codes for the daemon.
package exitcode

const (
	// Success indicates a clean shutdown.
	Success = 0

	// UserError indicates bad flags or configuration.
	UserError = 1

	// BackendError indicates a startup or serving failure.
	BackendError = 2

	// AuthError indicates a failed or incomplete OAuth login.
	AuthError = 3
)
