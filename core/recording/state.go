package recording

import (
	"errors"
	"fmt"
	"time"
)

type Phase string

const (
	PhaseIdle       Phase = "IDLE"
	PhaseArmed      Phase = "ARMED"
	PhaseRecording  Phase = "RECORDING"
	PhaseStopping   Phase = "STOPPING"
	PhaseProcessing Phase = "PROCESSING"
)

type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

func (k Kind) Extension() string {
	if k == KindVideo {
		return "mp4"
	}
	return "mp3"
}

// ParseKind maps a tool argument onto a kind, defaulting to audio.
func ParseKind(value string) Kind {
	if Kind(value) == KindVideo {
		return KindVideo
	}
	return KindAudio
}

const (
	DefaultPurpose     = "Daily Reflection"
	DefaultDescription = "Student feedback recording"
	DefaultSubject     = "Student"
)

var ErrIllegalTransition = errors.New("illegal recording transition")

var transitions = map[Phase][]Phase{
	PhaseIdle:       {PhaseArmed},
	PhaseArmed:      {PhaseRecording, PhaseIdle},
	PhaseRecording:  {PhaseStopping},
	PhaseStopping:   {PhaseProcessing},
	PhaseProcessing: {PhaseIdle},
}

// State is the recording workflow shown to the presentation layer.
type State struct {
	Phase       Phase     `json:"phase"`
	Kind        Kind      `json:"kind"`
	Purpose     string    `json:"purpose"`
	Description string    `json:"description"`
	Subject     string    `json:"subject,omitempty"`
	StartedAt   time.Time `json:"startedAt,omitzero"`
}

func NewState() State {
	return State{Phase: PhaseIdle, Kind: KindAudio, Purpose: DefaultPurpose, Description: DefaultDescription}
}

// Advance moves the state to phase if the transition is legal.
func (s *State) Advance(to Phase) error {
	for _, allowed := range transitions[s.Phase] {
		if allowed == to {
			s.Phase = to
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrIllegalTransition, s.Phase, to)
}

// Active reports whether a capture is armed or running.
func (s State) Active() bool {
	return s.Phase == PhaseArmed || s.Phase == PhaseRecording
}

// SubjectOrDefault returns the captured subject name or the generic
// placeholder.
func (s State) SubjectOrDefault() string {
	if s.Subject == "" {
		return DefaultSubject
	}
	return s.Subject
}
