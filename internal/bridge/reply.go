package bridge

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/textnorm"
)

// Envelope is the `--json` output of the agent CLI.
type Envelope struct {
	Result *Outcome `json:"result"`
}

type Outcome struct {
	Payloads []Payload `json:"payloads"`
}

type Payload struct {
	Text string `json:"text,omitempty"`
}

// MalformedError is returned when the agent's stdout is not a JSON envelope.
type MalformedError struct {
	// Stdout holds at most SnippetLen characters of the raw output.
	Stdout string
	Err    error
}

func (e *MalformedError) Error() string {
	return fmt.Sprintf("malformed agent response: %v", e.Err)
}

func (e *MalformedError) Unwrap() error { return e.Err }

// ParseReply decodes stdout and selects the first payload with text,
// falling back to Fallback when there is none.
func ParseReply(stdout string) (string, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(stdout), &env); err != nil {
		return "", &MalformedError{Stdout: Snippet(stdout), Err: err}
	}

	if env.Result != nil {
		for _, p := range env.Result.Payloads {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text, nil
			}
		}
	}

	return Fallback, nil
}

// Snippet cuts s down to SnippetLen characters for diagnostics.
func Snippet(s string) string {
	return textnorm.Truncate(s, SnippetLen)
}

// Render builds an envelope carrying a single text payload.
func Render(text string) (string, error) {
	env := Envelope{Result: &Outcome{Payloads: []Payload{{Text: text}}}}
	b, err := json.Marshal(env)
	if err != nil {
		return "", fmt.Errorf("marshal envelope: %w", err)
	}
	return string(b), nil
}
