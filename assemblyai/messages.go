package assemblyai

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"maxiwhisper/session"
	"maxiwhisper/transcript"
)

type message struct {
	Type string `json:"type"`

	// Begin
	ID        string `json:"id"`
	ExpiresAt int64  `json:"expires_at"`

	// Turn
	TurnOrder       int    `json:"turn_order"`
	Transcript      string `json:"transcript"`
	EndOfTurn       bool   `json:"end_of_turn"`
	TurnIsFormatted bool   `json:"turn_is_formatted"`

	// Termination
	AudioDurationSeconds float64 `json:"audio_duration_seconds"`

	// Error
	Error string `json:"error"`
}

var terminateMessage = []byte(`{"type":"Terminate"}`)

// decode turns one server message into an event. ok is false for messages
// that carry nothing for the session.
func decode(data []byte, formatTurns bool) (ev session.Event, ok bool, err error) {
	var m message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, false, fmt.Errorf("decode message: %w", err)
	}

	if m.Error != "" {
		return session.ErrorEvent{Err: fmt.Errorf("server error: %s", m.Error)}, true, nil
	}

	switch m.Type {
	case "Begin":
		var exp time.Time
		if m.ExpiresAt > 0 {
			exp = time.Unix(m.ExpiresAt, 0)
		}
		return session.BeginEvent{ID: m.ID, ExpiresAt: exp}, true, nil
	case "Turn":
		final := m.EndOfTurn
		if formatTurns {
			// The unformatted end of turn is followed by a formatted copy;
			// only the latter is final.
			final = m.EndOfTurn && m.TurnIsFormatted
		}
		return session.FragmentEvent{Fragment: transcript.Fragment{
			Text:    strings.TrimSpace(m.Transcript),
			IsFinal: final,
		}}, true, nil
	case "Termination":
		d := time.Duration(m.AudioDurationSeconds * float64(time.Second))
		return session.TerminationEvent{AudioDuration: d}, true, nil
	case "Error":
		return session.ErrorEvent{Err: fmt.Errorf("server error: %s", string(data))}, true, nil
	}
	return nil, false, nil
}
