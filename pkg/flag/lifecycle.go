package flag

import (
	"errors"
	"fmt"
	"regexp"
)

// keyPattern matches the allowed flag key shape: a lowercase slug. Keys are
// immutable after creation and appear in URLs and hash inputs, so the shape
// is restricted up front.
var keyPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]{0,99}$`)

// ValidateKey checks the flag key shape.
func ValidateKey(key string) error {
	if !keyPattern.MatchString(key) {
		return errors.Join(ErrValidation,
			fmt.Errorf("key %q must be a lowercase slug of at most 100 characters", key))
	}
	return nil
}

// ValidateRollout checks the rollout percentage range.
func ValidateRollout(pct int) error {
	if pct < 0 || pct > 100 {
		return errors.Join(ErrValidation,
			fmt.Errorf("rollout percentage %d must be between 0 and 100", pct))
	}
	return nil
}

// statusForRollout returns the status implied by a rollout percentage for a
// flag that is neither killed nor archived. Partial exposure is rollout,
// the endpoints are active.
func statusForRollout(pct int) Status {
	if pct > 0 && pct < 100 {
		return StatusRollout
	}
	return StatusActive
}

// mutable reports whether a flag in the given status accepts field updates.
// Killed flags stay editable for name, description, and the global switch,
// but rollout updates are rejected separately: revive resets the percentage
// to 0, so a value staged while killed could never take effect.
func mutable(s Status) bool {
	switch s {
	case StatusActive, StatusRollout, StatusKilled:
		return true
	case StatusArchived:
		return false
	}
	return false
}

// canKill reports whether the kill switch may be engaged from status s.
// Killing a killed flag is a no-op-style rejection rather than a duplicate
// history entry.
func canKill(s Status) error {
	switch s {
	case StatusActive, StatusRollout:
		return nil
	case StatusKilled:
		return newInvalidTransition(s, "kill")
	case StatusArchived:
		return newInvalidTransition(s, "kill")
	}
	return newInvalidTransition(s, "kill")
}

// canRevive reports whether the flag may leave the killed state.
func canRevive(s Status) error {
	switch s {
	case StatusKilled:
		return nil
	case StatusActive, StatusRollout, StatusArchived:
		return newInvalidTransition(s, "revive")
	}
	return newInvalidTransition(s, "revive")
}

// canArchive reports whether the flag may be archived. Archive is terminal:
// once archived, everything including archive itself is rejected.
func canArchive(s Status) error {
	switch s {
	case StatusActive, StatusRollout, StatusKilled:
		return nil
	case StatusArchived:
		return newInvalidTransition(s, "archive")
	}
	return newInvalidTransition(s, "archive")
}
