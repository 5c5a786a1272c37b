package engine

import (
	"errors"
	"fmt"

	"github.com/covenanthq/covenant/internal/pact"
)

// ConvergenceError reports that the iteration bound was reached before
// every slot settled within tolerance. It is fatal for the invocation: no
// partial liabilities are surfaced. Callers should treat it as "the
// commitment graph is currently inconsistent or diverging" and present it
// distinctly from a normal empty result.
type ConvergenceError struct {
	// GroupID identifies the affected group.
	GroupID string

	// Iterations is the bound that was reached.
	Iterations int

	// Residual is the largest per-slot movement in the final pass.
	Residual pact.Amount

	// User and Slot locate the worst-moving slot, for diagnostics.
	User pact.UserID
	Slot pact.Slot
}

// Error implements the error interface.
func (e *ConvergenceError) Error() string {
	return fmt.Sprintf("liability computation did not converge after %d iterations (group=%s, worst slot %s/%s moved %s)",
		e.Iterations, e.GroupID, e.User, e.Slot, e.Residual)
}

// IsConvergenceError reports whether err is (or wraps) a ConvergenceError.
func IsConvergenceError(err error) bool {
	var ce *ConvergenceError
	return errors.As(err, &ce)
}
