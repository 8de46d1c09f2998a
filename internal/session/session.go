// Package session implements the conversational audience-building
// workflow. Each session walks a fixed state machine from data-type
// selection through retrieval, variable confirmation, and segment
// computation. Sessions live in memory, hold variable codes rather than
// catalog references, and are evicted after an idle TTL.
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/segmenta-io/segmenta/internal/cluster"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/search"
)

// State is a workflow position. Transitions outside the permitted table
// fail with ErrCodeInvalidSessionState and leave the session unchanged.
type State string

const (
	StateAwaitingDataType    State = "awaiting_data_type"
	StateAwaitingQuery       State = "awaiting_query"
	StateCandidatesPresented State = "candidates_presented"
	StateVariablesConfirmed  State = "variables_confirmed"
	StateSegmentsComputed    State = "segments_computed"
	StateDistributionReady   State = "distribution_ready"
	StateTerminal            State = "terminal"
)

// Workflow events, recorded in the turn history.
const (
	EventCreate           = "create"
	EventSelectDataType   = "selectDataType"
	EventSubmitQuery      = "submitQuery"
	EventRefineQuery      = "refineQuery"
	EventConfirmVariables = "confirmVariables"
	EventComputeSegments  = "computeSegments"
	EventAcceptSegments   = "acceptSegments"
	EventCancel           = "cancel"
	EventEvict            = "evict"
)

// Data-type kinds a session can be scoped to.
const (
	DataFirstParty = "first-party"
	DataThirdParty = "third-party"
	DataCleanRoom  = "clean-room"
)

// DataType scopes a session to a record source.
type DataType struct {
	Kind      string `json:"kind"`
	SubSource string `json:"sub_source,omitempty"`
}

// Turn is one entry in a session's history log.
type Turn struct {
	At     time.Time `json:"at"`
	Event  string    `json:"event"`
	Detail string    `json:"detail,omitempty"`
}

// Session is one conversational workflow. All fields are guarded by mu;
// the manager holds it for the duration of each state transition.
type Session struct {
	mu sync.Mutex

	ID          string
	UserID      string
	CreatedAt   time.Time
	LastTouched time.Time

	State     State
	DataType  DataType
	LastQuery string

	// Candidates is the current result page. Candidate values carry codes
	// and scores only; display data rehydrates from the live snapshot.
	Candidates []search.Candidate

	// Confirmed is the user's selection, in confirmation order.
	Confirmed []string

	Segments []cluster.Segment
	History  []Turn
}

func newSession(id, userID string) *Session {
	now := time.Now()
	s := &Session{
		ID:          id,
		UserID:      userID,
		CreatedAt:   now,
		LastTouched: now,
		State:       StateAwaitingDataType,
	}
	s.record(EventCreate, "")
	return s
}

// record appends a turn and refreshes the idle clock. Callers hold mu.
func (s *Session) record(event, detail string) {
	now := time.Now()
	s.LastTouched = now
	s.History = append(s.History, Turn{At: now, Event: event, Detail: detail})
}

// require checks that the session is in one of the given states.
func (s *Session) require(event string, states ...State) error {
	for _, st := range states {
		if s.State == st {
			return nil
		}
	}
	return segerrors.New(segerrors.ErrCodeInvalidSessionState,
		fmt.Sprintf("cannot %s in state %s", event, s.State), nil)
}

// idle reports whether the session has been untouched for longer than ttl.
func (s *Session) idle(ttl time.Duration, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.LastTouched) > ttl
}

// hasCandidate reports whether code is on the current result page.
// Callers hold mu.
func (s *Session) hasCandidate(code string) bool {
	for _, c := range s.Candidates {
		if c.Code == code {
			return true
		}
	}
	return false
}

// hasConfirmed reports whether code is already selected. Callers hold mu.
func (s *Session) hasConfirmed(code string) bool {
	for _, c := range s.Confirmed {
		if c == code {
			return true
		}
	}
	return false
}

// Snapshot returns a copy of the mutable session fields for read-only
// presentation. The copy shares no slices with the live session.
func (s *Session) Snapshot() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()

	view := SessionView{
		ID:          s.ID,
		UserID:      s.UserID,
		CreatedAt:   s.CreatedAt,
		LastTouched: s.LastTouched,
		State:       s.State,
		DataType:    s.DataType,
		LastQuery:   s.LastQuery,
		Candidates:  append([]search.Candidate(nil), s.Candidates...),
		Confirmed:   append([]string(nil), s.Confirmed...),
		Segments:    append([]cluster.Segment(nil), s.Segments...),
		History:     append([]Turn(nil), s.History...),
	}
	return view
}

// SessionView is a point-in-time copy of a session for responses.
type SessionView struct {
	ID          string             `json:"id"`
	UserID      string             `json:"user_id"`
	CreatedAt   time.Time          `json:"created_at"`
	LastTouched time.Time          `json:"last_touched_at"`
	State       State              `json:"state"`
	DataType    DataType           `json:"data_type"`
	LastQuery   string             `json:"last_query,omitempty"`
	Candidates  []search.Candidate `json:"candidates,omitempty"`
	Confirmed   []string           `json:"confirmed_variables,omitempty"`
	Segments    []cluster.Segment  `json:"segments,omitempty"`
	History     []Turn             `json:"history,omitempty"`
}
