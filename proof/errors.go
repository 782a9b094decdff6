package proof

import (
	"github.com/spaceandtimefdn/proof-of-sql-go/logger"
)

// VerificationError reports that a query proof failed to verify. The reason
// is intentionally not exposed to the caller: revealing which identity
// failed could aid a forger. The internal reason is logged at debug level.
type VerificationError struct {
	reason string
}

func (e *VerificationError) Error() string {
	return "proof verification failed"
}

// NewVerificationError creates an opaque verification failure, recording the
// internal reason for debugging.
func NewVerificationError(reason string) error {
	log := logger.Logger()
	log.Debug().Str("reason", reason).Msg("verification failure")
	return &VerificationError{reason: reason}
}
