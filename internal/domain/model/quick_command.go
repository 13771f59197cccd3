package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"unicode"
	"unicode/utf8"

	"quickcommand-bridge/internal/domain"
)

const (
	// CommandPrefix is the chat token that triggers a remote quick command.
	CommandPrefix = "!quickcommand"

	// AnswerNotFound is returned when a job completes without steps[0].step_result.answer.
	AnswerNotFound = "answer not found"

	// NoTokenReceived is passed through when the token endpoint answers 200
	// without an access_token field.
	NoTokenReceived = "no token received"
)

// JobID identifies one remote quick command execution.
type JobID string

func (id JobID) String() string { return string(id) }

// Validate rejects empty ids and ids that would escape the status URL path.
func (id JobID) Validate() error {
	s := strings.TrimSpace(string(id))
	if s == "" || strings.ContainsAny(s, "/?#") {
		return domain.ErrInvalidJobID
	}
	return nil
}

type JobStatus string

const (
	JobStatusCreated   JobStatus = "CREATED"
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailure   JobStatus = "FAILURE"
)

// IsTerminal reports whether polling should stop on this status.
// Only COMPLETED ends the poll loop.
func (s JobStatus) IsTerminal() bool { return s == JobStatusCompleted }

// StatusRecord is a snapshot returned by the job status endpoint. Only the
// status is decoded strictly; steps stay raw until Answer reads them.
type StatusRecord struct {
	Progress Progress        `json:"progress"`
	Steps    json.RawMessage `json:"steps,omitempty"`
}

type Progress struct {
	Status JobStatus `json:"status"`
}

// Answer returns steps[0].step_result.answer. A JSON string is returned as-is,
// any other non-null value as its compact JSON text. ok is false for every
// other shape.
func (r *StatusRecord) Answer() (answer string, ok bool) {
	if r == nil || len(r.Steps) == 0 {
		return "", false
	}
	var steps []json.RawMessage
	if err := json.Unmarshal(r.Steps, &steps); err != nil || len(steps) == 0 {
		return "", false
	}
	stepResult, ok := field(steps[0], "step_result")
	if !ok {
		return "", false
	}
	raw, ok := field(stepResult, "answer")
	if !ok {
		return "", false
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return "", false
	}
	return buf.String(), true
}

// field returns the non-null member key of a JSON object.
func field(obj json.RawMessage, key string) (json.RawMessage, bool) {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return nil, false
	}
	v, ok := m[key]
	if !ok || len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null")) {
		return nil, false
	}
	return v, true
}

// Command is a parsed chat command.
type Command struct {
	Prefix   string
	Argument string
}

// ParseCommand extracts the argument of a "!quickcommand <argument>" message.
// It returns ErrNotCommand for unrelated text and ErrEmptyArgument (together with
// the parsed prefix) when nothing follows the prefix.
func ParseCommand(text string) (Command, error) {
	if !strings.HasPrefix(text, CommandPrefix) {
		return Command{}, domain.ErrNotCommand
	}
	rest := text[len(CommandPrefix):]
	if rest != "" {
		// "!quickcommandfoo" is some other command.
		if r, _ := utf8.DecodeRuneInString(rest); !unicode.IsSpace(r) {
			return Command{}, domain.ErrNotCommand
		}
	}
	cmd := Command{Prefix: CommandPrefix, Argument: strings.TrimSpace(rest)}
	if cmd.Argument == "" {
		return cmd, domain.ErrEmptyArgument
	}
	return cmd, nil
}

// IncomingMessage is a platform-neutral chat event.
type IncomingMessage struct {
	Platform   string
	ChannelID  string
	AuthorID   string
	AuthorName string
	Content    string
	FromSelf   bool
}
