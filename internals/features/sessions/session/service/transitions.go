// file: internals/features/sessions/session/service/transitions.go
package service

import (
	"errors"

	"github.com/google/uuid"

	"akademiku_backend/internals/features/sessions/session/model"
)

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrMissingPrerequisite    = errors.New("missing prerequisite data")
	ErrMeetingRoomUnavailable = errors.New("meeting room unavailable")
)

// TransitionResult describes a guarded transition. A transition whose
// precondition does not hold is not an error: Applied is false and Reason
// says why.
type TransitionResult struct {
	Applied bool                `json:"applied"`
	From    model.SessionStatus `json:"from"`
	To      model.SessionStatus `json:"to"`
	Reason  string              `json:"reason,omitempty"`

	Session *model.LiveSessionModel `json:"-"`
}

const (
	ReasonInvalidTransition = "invalid_transition"
	ReasonOutsideWindow     = "outside_start_window"
	ReasonNotIndividual     = "not_individual_session"
)

// allowedFrom lists the source states of every target state.
var allowedFrom = map[model.SessionStatus][]model.SessionStatus{
	model.SessionStatusReady:     {model.SessionStatusScheduled},
	model.SessionStatusOngoing:   {model.SessionStatusReady},
	model.SessionStatusCompleted: {model.SessionStatusOngoing, model.SessionStatusReady},
	model.SessionStatusCancelled: {model.SessionStatusScheduled, model.SessionStatusReady},
	model.SessionStatusAbsent:    {model.SessionStatusReady, model.SessionStatusOngoing},
}

func CanTransition(from, to model.SessionStatus) bool {
	for _, s := range allowedFrom[to] {
		if s == from {
			return true
		}
	}
	return false
}

// SessionError is one failed session inside a sweep batch.
type SessionError struct {
	SessionID uuid.UUID `json:"session_id"`
	Stage     string    `json:"stage"`
	Err       error     `json:"-"`
	Message   string    `json:"message"`
}

func (e SessionError) Error() string {
	return e.Stage + " " + e.SessionID.String() + ": " + e.Message
}

type BatchResult struct {
	ReadyCount     int            `json:"ready_count"`
	StartedCount   int            `json:"started_count"`
	AbsentCount    int            `json:"absent_count"`
	CompletedCount int            `json:"completed_count"`
	SettledCount   int            `json:"settled_count"`
	Errors         []SessionError `json:"errors"`
}
