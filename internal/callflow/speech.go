package callflow

import (
	"context"
	"sync"
)

// SpeechClient abstracts the voice channel. Real deployments plug a
// telephony/ASR integration in; tests and the simulated call endpoint use
// ScriptedSpeech.
type SpeechClient interface {
	// Speak plays a prompt to the caller.
	Speak(ctx context.Context, text string) error
	// ListenOnce captures a single caller utterance.
	ListenOnce(ctx context.Context) (string, error)
}

// ScriptedSpeech replays a fixed list of caller utterances and records what
// was spoken to the caller.
type ScriptedSpeech struct {
	mu      sync.Mutex
	replies []string
	next    int

	// Spoken holds every prompt in the order it was played.
	Spoken []string
}

// NewScriptedSpeech creates a client that answers prompts with the given
// utterances in order. Once they run out, ListenOnce returns "".
func NewScriptedSpeech(replies ...string) *ScriptedSpeech {
	return &ScriptedSpeech{replies: replies}
}

func (s *ScriptedSpeech) Speak(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Spoken = append(s.Spoken, text)
	return nil
}

func (s *ScriptedSpeech) ListenOnce(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.next >= len(s.replies) {
		return "", nil
	}
	reply := s.replies[s.next]
	s.next++
	return reply, nil
}
