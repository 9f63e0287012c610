// Package audit provides audit logging for fleet reconciliation attempts.
package audit

import (
	"fmt"
	"time"

	"github.com/ucifleet/ucifleet/pkg/uci"
)

// Event represents one auditable reconciliation/apply attempt against a
// single device.
type Event struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	User      string        `json:"user"`
	Device    string        `json:"device"`
	Operation string        `json:"operation"`
	Commands  []uci.Command `json:"commands"`
	Success   bool          `json:"success"`
	Error     string        `json:"error,omitempty"`
	DryRun    bool          `json:"dry_run"`
	Duration  time.Duration `json:"duration"`
	SessionID string        `json:"session_id,omitempty"`
}

// EventType categorizes audit events.
type EventType string

const (
	EventTypeConnect    EventType = "connect"
	EventTypeDisconnect EventType = "disconnect"
	EventTypePreview    EventType = "preview"
	EventTypeApply      EventType = "apply"
	EventTypeRollback   EventType = "rollback"
	EventTypeCommit     EventType = "commit"
)

// Filter defines criteria for querying audit events.
type Filter struct {
	Device      string
	User        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates a new audit event.
func NewEvent(user, device, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Device:    device,
		Operation: operation,
	}
}

// WithCommands sets the commands applied (or that would have been applied).
func (e *Event) WithCommands(cmds []uci.Command) *Event {
	e.Commands = cmds
	return e
}

// WithSuccess marks the event as successful.
func (e *Event) WithSuccess() *Event {
	e.Success = true
	return e
}

// WithError marks the event as failed.
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets the operation duration.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks whether the attempt was a dry-run (non-mutating).
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
