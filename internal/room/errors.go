package room

import (
	"errors"
	"fmt"
)

// Reason names why an admission or integrity check refused an operation.
type Reason string

// Rejection reasons.
const (
	ReasonNotFound          Reason = "not_found"
	ReasonFull              Reason = "full"
	ReasonAlreadyJoined     Reason = "already_joined"
	ReasonWrongStatus       Reason = "wrong_status"
	ReasonNotHost           Reason = "not_host"
	ReasonBelowMinimum      Reason = "below_minimum"
	ReasonNumberNotCalled   Reason = "number_not_called"
	ReasonNumberNotOnCard   Reason = "number_not_on_card"
	ReasonInvalidPattern    Reason = "invalid_pattern"
	ReasonInvalidCard       Reason = "invalid_card"
	ReasonNotMember         Reason = "not_member"
	ReasonInvalidMaxPlayers Reason = "invalid_max_players"
)

// Rejection is the expected, non-exceptional refusal of an operation. The
// operation that returned it left no state behind.
type Rejection struct {
	Reason Reason
}

func (r *Rejection) Error() string {
	return fmt.Sprintf("rejected: %s", r.Reason)
}

// Is matches any Rejection carrying the same reason.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

func reject(reason Reason) error {
	return &Rejection{Reason: reason}
}

// Sentinel rejections for errors.Is checks.
var (
	ErrRoomNotFound    = &Rejection{Reason: ReasonNotFound}
	ErrRoomFull        = &Rejection{Reason: ReasonFull}
	ErrAlreadyJoined   = &Rejection{Reason: ReasonAlreadyJoined}
	ErrWrongStatus     = &Rejection{Reason: ReasonWrongStatus}
	ErrNotHost         = &Rejection{Reason: ReasonNotHost}
	ErrBelowMinimum    = &Rejection{Reason: ReasonBelowMinimum}
	ErrNumberNotCalled = &Rejection{Reason: ReasonNumberNotCalled}
	ErrInvalidPattern  = &Rejection{Reason: ReasonInvalidPattern}
	ErrInvalidCard     = &Rejection{Reason: ReasonInvalidCard}
	ErrNotMember       = &Rejection{Reason: ReasonNotMember}
)

// Store failures.
var (
	// ErrStore wraps every persistence failure. Such failures are retryable
	// and leave the in-memory room untouched.
	ErrStore = errors.New("store failure")

	// ErrCodeTaken is returned by Store.CreateRoom when the code already
	// exists. Creation retries with a fresh code.
	ErrCodeTaken = errors.New("room code taken")

	// ErrCodeSpace is returned when no free code was found within the
	// configured number of attempts.
	ErrCodeSpace = errors.New("failed to allocate a unique room code")
)

// IsRejection reports whether err is an admission or integrity rejection and
// returns its reason.
func IsRejection(err error) (Reason, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r.Reason, true
	}
	return "", false
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%w: failed to %s: %w", ErrStore, op, err)
}
