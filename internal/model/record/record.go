package record

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Mode names the backend that produced a record.
type Mode string

const (
	ModeChat    Mode = "chat"
	ModeExecute Mode = "execute"
)

// Valid reports whether m is a known mode.
func (m Mode) Valid() bool {
	return m == ModeChat || m == ModeExecute
}

// ParseMode converts user input into a Mode.
func ParseMode(raw string) (Mode, error) {
	m := Mode(raw)
	if !m.Valid() {
		return "", fmt.Errorf("unknown mode %q (want chat or execute)", raw)
	}
	return m, nil
}

// Record persists one request/response pair.
type Record struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
	Mode      Mode      `json:"mode"`
	Model     string    `json:"model,omitempty"`
	Input     string    `json:"input"`
	Output    string    `json:"output"`
	RawOutput string    `json:"raw_output,omitempty"`
}

// New stamps a record with a fresh id and the current time.
func New(sessionID string, mode Mode, model, input, output string) Record {
	return Record{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Timestamp: time.Now(),
		Mode:      mode,
		Model:     model,
		Input:     input,
		Output:    output,
	}
}
