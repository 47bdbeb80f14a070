package web

import (
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"topic-chatter/internal/assistant"
	"topic-chatter/internal/llm"
	"topic-chatter/internal/storage"
	"topic-chatter/internal/topic"
)

type entry struct {
	session  *assistant.Session
	lastSeen time.Time
}

// Store keeps the live browser sessions of one assistant. A session exists
// from its first turn until it is reset or has been idle longer than the
// store's TTL; nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry

	profile  topic.Config
	client   llm.Client
	recorder storage.Recorder
	idleTTL  time.Duration
	now      func() time.Time
}

// NewStore creates an empty store. idleTTL <= 0 disables idle eviction.
func NewStore(profile topic.Config, client llm.Client, recorder storage.Recorder, idleTTL time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		profile:  profile,
		client:   client,
		recorder: recorder,
		idleTTL:  idleTTL,
		now:      time.Now,
	}
}

// Get returns a live session and marks it active.
func (st *Store) Get(id string) (*assistant.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	e, ok := st.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastSeen = st.now()
	return e.session, true
}

// GetOrCreate returns the session for id, creating one under a fresh id when
// id is empty or unknown.
func (st *Store) GetOrCreate(id string) (*assistant.Session, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if e, ok := st.sessions[id]; ok {
		e.lastSeen = st.now()
		return e.session, false
	}
	s := assistant.NewSession(uuid.NewString(), st.profile, st.client, st.recorder)
	st.sessions[s.ID] = &entry{session: s, lastSeen: st.now()}
	return s, true
}

func (st *Store) Reset(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// EvictIdle drops every session not touched within the idle TTL and returns
// how many were dropped.
func (st *Store) EvictIdle() int {
	if st.idleTTL <= 0 {
		return 0
	}
	cutoff := st.now().Add(-st.idleTTL)

	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, e := range st.sessions {
		if e.lastSeen.Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	if n > 0 {
		log.Printf("🧹 Evicted %d idle chat sessions (%d left)", n, len(st.sessions))
	}
	return n
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

func (st *Store) Profile() topic.Config { return st.profile }
