package pipeline

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Kind classifies why a turn ended early.
type Kind int

const (
	KindCapture Kind = iota + 1
	KindTranscription
	KindRejected
	KindBridge
	KindMalformed
	KindSynthesis
	KindPlayback
	KindUnexpected
)

func (k Kind) String() string {
	switch k {
	case KindCapture:
		return "capture"
	case KindTranscription:
		return "transcription"
	case KindRejected:
		return "rejected"
	case KindBridge:
		return "bridge"
	case KindMalformed:
		return "malformed"
	case KindSynthesis:
		return "synthesis"
	case KindPlayback:
		return "playback"
	case KindUnexpected:
		return "unexpected"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// TurnError is returned by a stage that aborts the current turn. Stdout and
// Stderr carry agent output when there is any.
type TurnError struct {
	Kind   Kind
	Err    error
	Stdout string
	Stderr string
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *TurnError) Unwrap() error { return e.Err }

// KindOf reports the kind of a turn error, or KindUnexpected for anything
// else.
func KindOf(err error) Kind {
	var te *TurnError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindUnexpected
}

// Quality gate rejections.
var (
	ErrEmpty    = errors.New("Didn't catch that.")
	ErrNoise    = errors.New("Heard only noise/punctuation, skipping.")
	ErrTooShort = errors.New("Too short, skipping")
)

var alnumRe = regexp.MustCompile(`[a-zA-Z0-9]`)

// Gate rejects transcripts that are empty, carry no ASCII letter or digit,
// or have fewer than two words.
func Gate(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if !alnumRe.MatchString(text) {
		return ErrNoise
	}
	if len(strings.Fields(text)) < 2 {
		return fmt.Errorf("%w: %q", ErrTooShort, text)
	}
	return nil
}
