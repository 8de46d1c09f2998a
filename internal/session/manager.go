package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/segmenta-io/segmenta/internal/cluster"
	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/search"
)

// Retriever runs the retrieval pipeline for a session query. The façade
// implements it; tests inject fakes.
type Retriever interface {
	Retrieve(ctx context.Context, rawQuery string) (*search.Result, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, rawQuery string) (*search.Result, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, rawQuery string) (*search.Result, error) {
	return f(ctx, rawQuery)
}

// Manager owns all live sessions. Operations within one session are
// serialized by the session mutex; the manager map has its own lock.
type Manager struct {
	cfg       config.SessionsConfig
	clusterer cluster.Clusterer
	defaultK  int
	tolerance float64
	logger    *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session

	stop chan struct{}
	done chan struct{}
}

// NewManager builds a manager and starts the TTL janitor. Callers must
// Close it to stop the janitor.
func NewManager(cfg config.SessionsConfig, ccfg config.ClustererConfig, clusterer cluster.Clusterer, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Minute
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = time.Minute
	}
	defaultK := ccfg.DefaultK
	if defaultK < 2 {
		defaultK = 4
	}

	m := &Manager{
		cfg:       cfg,
		clusterer: clusterer,
		defaultK:  defaultK,
		tolerance: ccfg.BalanceTolerance,
		logger:    logger,
		sessions:  make(map[string]*Session),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go m.janitor()
	return m
}

// Close stops the janitor. Live sessions are dropped with the process.
func (m *Manager) Close() {
	close(m.stop)
	<-m.done
}

// Create allocates a new session in AwaitingDataType.
func (m *Manager) Create(userID string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.cfg.MaxSessions > 0 && len(m.sessions) >= m.cfg.MaxSessions {
		return nil, segerrors.New(segerrors.ErrCodeSessionLimit,
			fmt.Sprintf("session limit of %d reached", m.cfg.MaxSessions), nil)
	}

	s := newSession(uuid.NewString(), userID)
	m.sessions[s.ID] = s
	m.logger.Debug("session created", "session_id", s.ID, "user_id", userID)
	return s, nil
}

// Get returns a live session by id.
func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if !ok {
		return nil, segerrors.New(segerrors.ErrCodeSessionNotFound,
			fmt.Sprintf("session %q not found", id), nil)
	}
	return s, nil
}

// Len reports the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// SelectDataType scopes the session to a record source.
func (m *Manager) SelectDataType(id, kind, subSource string) error {
	switch kind {
	case DataFirstParty, DataThirdParty, DataCleanRoom:
	default:
		return segerrors.New(segerrors.ErrCodeInvalidQuery,
			fmt.Sprintf("unknown data type %q", kind), nil)
	}

	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventSelectDataType, StateAwaitingDataType); err != nil {
		return err
	}
	s.DataType = DataType{Kind: kind, SubSource: subSource}
	s.State = StateAwaitingQuery
	s.record(EventSelectDataType, kind)
	return nil
}

// SubmitQuery runs retrieval and presents the first candidate page. A
// retrieval failure leaves the session state unchanged.
func (m *Manager) SubmitQuery(ctx context.Context, id, rawQuery string, retriever Retriever) (*search.Result, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventSubmitQuery, StateAwaitingQuery); err != nil {
		return nil, err
	}

	res, err := retriever.Retrieve(ctx, rawQuery)
	if err != nil {
		return nil, err
	}

	s.LastQuery = rawQuery
	s.Candidates = res.Candidates
	s.State = StateCandidatesPresented
	s.record(EventSubmitQuery, rawQuery)
	return res, nil
}

// RefineQuery re-runs retrieval. Previously confirmed variables always
// survive the refinement and stay valid for later confirmations; when
// keepSelected is set they are also merged back into the returned page.
func (m *Manager) RefineQuery(ctx context.Context, id, rawQuery string, retriever Retriever, keepSelected bool) (*search.Result, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventRefineQuery, StateCandidatesPresented, StateVariablesConfirmed); err != nil {
		return nil, err
	}

	res, err := retriever.Retrieve(ctx, rawQuery)
	if err != nil {
		return nil, err
	}

	page := res.Candidates
	if keepSelected {
		page = mergeConfirmed(res.Candidates, s.Confirmed, s.Candidates)
		res.Candidates = page
	}

	s.LastQuery = rawQuery
	s.Candidates = mergeConfirmed(page, s.Confirmed, s.Candidates)
	s.State = StateCandidatesPresented
	s.record(EventRefineQuery, rawQuery)
	return res, nil
}

// ConfirmVariables stores the user's selection. Every id must come from
// the current candidate page or a prior confirmation.
func (m *Manager) ConfirmVariables(id string, codes []string) error {
	if len(codes) == 0 {
		return segerrors.New(segerrors.ErrCodeInvalidQuery, "no variables selected", nil)
	}

	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventConfirmVariables, StateCandidatesPresented, StateVariablesConfirmed); err != nil {
		return err
	}

	for _, code := range codes {
		if !s.hasCandidate(code) && !s.hasConfirmed(code) {
			return segerrors.New(segerrors.ErrCodeInvalidQuery,
				fmt.Sprintf("variable %q is not among the presented candidates", code), nil)
		}
	}

	for _, code := range codes {
		if !s.hasConfirmed(code) {
			s.Confirmed = append(s.Confirmed, code)
		}
	}
	s.State = StateVariablesConfirmed
	s.record(EventConfirmVariables, strings.Join(codes, ","))
	return nil
}

// ComputeSegments calls the external clusterer over the confirmed set.
// A clustering failure leaves the session state unchanged.
func (m *Manager) ComputeSegments(ctx context.Context, id string, k int) (*cluster.Output, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventComputeSegments, StateVariablesConfirmed); err != nil {
		return nil, err
	}
	if m.clusterer == nil {
		return nil, segerrors.New(segerrors.ErrCodeClusteringFailed, "no clusterer configured", nil)
	}
	if k < 2 {
		k = m.defaultK
	}

	out, err := m.clusterer.Cluster(ctx, cluster.Input{
		VariableCodes:    append([]string(nil), s.Confirmed...),
		RecordSource:     recordSource(s.DataType),
		K:                k,
		BalanceTolerance: m.tolerance,
	})
	if err != nil {
		return nil, err
	}

	s.Segments = out.Segments
	s.State = StateSegmentsComputed
	s.record(EventComputeSegments, fmt.Sprintf("k=%d", k))
	return out, nil
}

// AcceptSegments freezes the computed segments for distribution.
func (m *Manager) AcceptSegments(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.require(EventAcceptSegments, StateSegmentsComputed); err != nil {
		return err
	}
	s.State = StateDistributionReady
	s.record(EventAcceptSegments, "")
	return nil
}

// Cancel terminates a session from any non-terminal state and releases it.
func (m *Manager) Cancel(id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.State == StateTerminal {
		s.mu.Unlock()
		return segerrors.New(segerrors.ErrCodeInvalidSessionState, "session is already terminal", nil)
	}
	s.State = StateTerminal
	s.record(EventCancel, "")
	s.mu.Unlock()

	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	m.logger.Debug("session canceled", "session_id", id)
	return nil
}

// janitor evicts idle sessions on the configured sweep interval.
func (m *Manager) janitor() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

// sweep removes sessions idle beyond the TTL.
func (m *Manager) sweep(now time.Time) int {
	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if s.idle(m.cfg.TTL, now) {
			delete(m.sessions, id)
			evicted = append(evicted, s)
		}
	}
	m.mu.Unlock()

	for _, s := range evicted {
		s.mu.Lock()
		s.State = StateTerminal
		s.History = append(s.History, Turn{At: now, Event: EventEvict})
		s.mu.Unlock()
		m.logger.Debug("session evicted", "session_id", s.ID)
	}
	return len(evicted)
}

// mergeConfirmed appends confirmed codes missing from the fresh page,
// reusing their stored candidate entries so scores survive refinement.
func mergeConfirmed(fresh []search.Candidate, confirmed []string, prior []search.Candidate) []search.Candidate {
	if len(confirmed) == 0 {
		return fresh
	}

	present := make(map[string]struct{}, len(fresh))
	for _, c := range fresh {
		present[c.Code] = struct{}{}
	}
	byCode := make(map[string]search.Candidate, len(prior))
	for _, c := range prior {
		byCode[c.Code] = c
	}

	out := fresh
	for _, code := range confirmed {
		if _, ok := present[code]; ok {
			continue
		}
		if c, ok := byCode[code]; ok {
			out = append(out, c)
		} else {
			out = append(out, search.Candidate{Code: code})
		}
	}
	return out
}

func recordSource(dt DataType) string {
	if dt.SubSource == "" {
		return dt.Kind
	}
	return dt.Kind + "/" + dt.SubSource
}
