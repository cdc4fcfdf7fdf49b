package view

import (
	"sync"
	"time"

	"github.com/derickschaefer/tubestats/internal/model"
)

// Snapshot is one published result of a refresh cycle. It is never
// mutated after Publish.
type Snapshot struct {
	Seq         uint64
	Payload     *model.Payload
	Predictions *model.PredictionSet
	FetchedAt   time.Time
}

// State holds the latest Snapshot.
type State struct {
	mu   sync.RWMutex
	snap *Snapshot
}

func NewState() *State {
	return &State{}
}

// Publish replaces the current snapshot when s.Seq is newer than the one
// held. It reports whether s was accepted.
func (st *State) Publish(s *Snapshot) bool {
	if s == nil {
		return false
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.snap != nil && s.Seq <= st.snap.Seq {
		return false
	}
	st.snap = s
	return true
}

// Current returns the latest snapshot, or ErrNoSnapshot.
func (st *State) Current() (*Snapshot, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.snap == nil {
		return nil, model.ErrNoSnapshot
	}
	return st.snap, nil
}

// Seq is the sequence number of the current snapshot, 0 if none.
func (st *State) Seq() uint64 {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.snap == nil {
		return 0
	}
	return st.snap.Seq
}

// UpdatedAt is when the current snapshot was fetched.
func (st *State) UpdatedAt() time.Time {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.snap == nil {
		return time.Time{}
	}
	return st.snap.FetchedAt
}

// Dashboard builds the dashboard for sel from the current snapshot.
func (st *State) Dashboard(sel Selection) (*Dashboard, error) {
	s, err := st.Current()
	if err != nil {
		return nil, err
	}
	return Build(s.Payload, s.Predictions, sel)
}
