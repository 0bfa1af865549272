package bot

import (
	"sync"

	"agrohub.dev/garden-hub/pkg/metrics"
)

// State is the position of one operator chat in a conversation flow.
type State int

const (
	// StateIdle means no conversation flow is in progress.
	StateIdle State = iota
	// StateAwaitingRobotID means the next text message is a robot id to bind.
	StateAwaitingRobotID
	// StateAwaitingSpecies means the next text message is a new plant's species.
	StateAwaitingSpecies
	// StateAwaitingLocation means the next text message is the new plant's location.
	StateAwaitingLocation
)

// session is the ephemeral per-chat conversation state. Species holds the
// partially entered plant between the species and location prompts.
type session struct {
	state   State
	species string
}

// Sessions tracks conversation state per chat. State is in-memory only;
// a restart drops every operator back to idle.
type Sessions struct {
	mu      sync.Mutex
	byChat  map[int64]*session
	metrics *metrics.BotMetrics // Optional metrics
}

// NewSessions creates an empty session tracker.
func NewSessions(m *metrics.BotMetrics) *Sessions {
	return &Sessions{
		byChat:  make(map[int64]*session),
		metrics: m,
	}
}

// State returns the chat's current state, idle if it has none.
func (s *Sessions) State(chatID int64) State {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byChat[chatID]; ok {
		return sess.state
	}
	return StateIdle
}

// Begin moves the chat into the given state, discarding any previously
// entered plant data.
func (s *Sessions) Begin(chatID int64, state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byChat[chatID]; !ok && s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}
	s.byChat[chatID] = &session{state: state}
}

// SetSpecies records the entered species and advances to the location prompt.
func (s *Sessions) SetSpecies(chatID int64, species string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.byChat[chatID]
	if !ok {
		sess = &session{}
		s.byChat[chatID] = sess
		if s.metrics != nil {
			s.metrics.ActiveSessions.Inc()
		}
	}
	sess.species = species
	sess.state = StateAwaitingLocation
}

// Species returns the species entered earlier in the add-plant flow.
func (s *Sessions) Species(chatID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.byChat[chatID]; ok {
		return sess.species
	}
	return ""
}

// Reset returns the chat to idle and discards partial plant data.
func (s *Sessions) Reset(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.byChat[chatID]; ok {
		delete(s.byChat, chatID)
		if s.metrics != nil {
			s.metrics.ActiveSessions.Dec()
		}
	}
}
