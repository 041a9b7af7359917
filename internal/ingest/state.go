package ingest

import (
	"fmt"
	"sync"
	"time"
)

// State is the upload widget state of one analysis template.
type State struct {
	Template  string    `json:"template" msgpack:"template"`
	Preview   *Preview  `json:"preview,omitempty" msgpack:"preview,omitempty"`
	Error     string    `json:"error,omitempty" msgpack:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at" msgpack:"updated_at"`
}

// Load replaces the state with the result of parsing text. A previous error
// is always cleared first; a new failure is stored as a user-facing message.
func (s *State) Load(text string, opt Options) error {
	s.Error = ""
	s.Preview = nil
	s.UpdatedAt = time.Now()
	p, err := BuildPreview(text, opt)
	if err != nil {
		s.Error = Message(err)
		return err
	}
	s.Preview = p
	return nil
}

// Message maps a parse error to the text shown next to the upload field.
func Message(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("Could not parse headers: %v", err)
}

// Board holds upload states per session and template. States idle for
// longer than ttl are dropped; once max states are held the least recently
// updated one is evicted. A zero ttl or max disables that bound.
type Board struct {
	opt    Options
	ttl    time.Duration
	max    int
	mu     sync.Mutex
	states map[string]*State
	now    func() time.Time
}

// NewBoard returns an empty board using opt for every load.
func NewBoard(opt Options, ttl time.Duration, max int) *Board {
	return &Board{opt: opt, ttl: ttl, max: max, states: make(map[string]*State), now: time.Now}
}

func boardKey(session, template string) string { return session + "\x00" + template }

// Load parses text into the state of (session, template) and returns a copy of
// the resulting state. The error return mirrors State.Error.
func (b *Board) Load(session, template, text string) (State, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sweep()
	k := boardKey(session, template)
	st, ok := b.states[k]
	if !ok {
		if b.max > 0 {
			for len(b.states) >= b.max {
				b.evictOldest()
			}
		}
		st = &State{Template: template}
		b.states[k] = st
	}
	err := st.Load(text, b.opt)
	st.UpdatedAt = b.now()
	return *st, err
}

// Get returns the current state of (session, template).
func (b *Board) Get(session, template string) (State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := boardKey(session, template)
	st, ok := b.states[k]
	if !ok {
		return State{}, false
	}
	if b.expired(st) {
		delete(b.states, k)
		return State{}, false
	}
	return *st, true
}

// Reset forgets the state of (session, template).
func (b *Board) Reset(session, template string) {
	b.mu.Lock()
	delete(b.states, boardKey(session, template))
	b.mu.Unlock()
}

// Len reports the number of held states.
func (b *Board) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.states)
}

func (b *Board) expired(st *State) bool {
	return b.ttl > 0 && b.now().Sub(st.UpdatedAt) > b.ttl
}

func (b *Board) sweep() {
	if b.ttl <= 0 {
		return
	}
	for k, st := range b.states {
		if b.expired(st) {
			delete(b.states, k)
		}
	}
}

func (b *Board) evictOldest() {
	var oldest string
	var at time.Time
	for k, st := range b.states {
		if oldest == "" || st.UpdatedAt.Before(at) {
			oldest, at = k, st.UpdatedAt
		}
	}
	delete(b.states, oldest)
}
