package common

import "fmt"

// maxErrDetail bounds the length of attacker-influenced detail strings that
// end up in logs and error messages.
const maxErrDetail = 128

// CoordErrType ...
type CoordErrType uint32

const (
	// MalformedFrame is a size or structure violation detected at the wire
	// boundary. The frame is dropped without mutating any state.
	MalformedFrame CoordErrType = iota
	// AuthenticationFailure is a bad signature, ticket, or identity mismatch.
	AuthenticationFailure
	// ReplayRejected is a stale nonce, version, or request id. It is an
	// idempotent no-op, not a fault.
	ReplayRejected
	// PolicyViolation is an action not permitted for the sender's tier.
	PolicyViolation
	// CollaboratorUnavailable is a failed call to the durable store or the
	// fee-policy bridge. The protocol loop degrades instead of crashing.
	CollaboratorUnavailable
	// ConflictLost is an intent tie-break loss. It is an expected outcome.
	ConflictLost
	// KeyNotFound is a miss in the durable store.
	KeyNotFound
)

// CoordErr ...
type CoordErr struct {
	component string
	errType   CoordErrType
	detail    string
}

// NewCoordErr ...
func NewCoordErr(component string, errType CoordErrType, detail string) CoordErr {
	if len(detail) > maxErrDetail {
		detail = detail[:maxErrDetail]
	}
	return CoordErr{
		component: component,
		errType:   errType,
		detail:    detail,
	}
}

// Error implements the error interface.
func (e CoordErr) Error() string {
	m := ""
	switch e.errType {
	case MalformedFrame:
		m = "Malformed Frame"
	case AuthenticationFailure:
		m = "Authentication Failure"
	case ReplayRejected:
		m = "Replay Rejected"
	case PolicyViolation:
		m = "Policy Violation"
	case CollaboratorUnavailable:
		m = "Collaborator Unavailable"
	case ConflictLost:
		m = "Conflict Lost"
	case KeyNotFound:
		m = "Not Found"
	}

	return fmt.Sprintf("%s, %s, %s", e.component, e.detail, m)
}

// IsCoord checks that an error is of type CoordErr and that its code matches
// the provided CoordErrType code.
func IsCoord(err error, t CoordErrType) bool {
	coordErr, ok := err.(CoordErr)
	return ok && coordErr.errType == t
}
