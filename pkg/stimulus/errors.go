// ABOUTME: Error taxonomy shared by the stimulus engine
// ABOUTME: Construction and synthesis failures are reported with these sentinels
package stimulus

import "errors"

var (
	// ErrInvalidConfig is returned when a configuration value is out of range.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrMissingCollaborator is returned when a required dependency is nil.
	ErrMissingCollaborator = errors.New("missing collaborator")
)
