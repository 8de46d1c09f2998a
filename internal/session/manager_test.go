package session

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/segmenta-io/segmenta/internal/cluster"
	"github.com/segmenta-io/segmenta/internal/config"
	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/search"
)

func testManager(t *testing.T) *Manager {
	t.Helper()
	m := NewManager(
		config.SessionsConfig{TTL: time.Hour, SweepInterval: time.Hour},
		config.ClustererConfig{DefaultK: 3},
		&cluster.FakeClusterer{Population: 9000},
		nil,
	)
	t.Cleanup(m.Close)
	return m
}

func fixedRetriever(cands ...search.Candidate) Retriever {
	return RetrieverFunc(func(ctx context.Context, rawQuery string) (*search.Result, error) {
		return &search.Result{
			Candidates: append([]search.Candidate(nil), cands...),
			TotalFound: len(cands),
		}, nil
	})
}

func failingRetriever(err error) Retriever {
	return RetrieverFunc(func(ctx context.Context, rawQuery string) (*search.Result, error) {
		return nil, err
	})
}

func TestSessionHappyPath(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingDataType, s.Snapshot().State)

	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, "crm"))
	assert.Equal(t, StateAwaitingQuery, s.Snapshot().State)

	retriever := fixedRetriever(
		search.Candidate{Code: "FIN_INC", Name: "Household Income", Fused: 0.9},
		search.Candidate{Code: "DEM_AGE", Name: "Age Group", Fused: 0.8},
	)
	res, err := m.SubmitQuery(ctx, s.ID, "affluent millennials", retriever)
	require.NoError(t, err)
	assert.Len(t, res.Candidates, 2)
	assert.Equal(t, StateCandidatesPresented, s.Snapshot().State)

	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC", "DEM_AGE"}))
	assert.Equal(t, StateVariablesConfirmed, s.Snapshot().State)

	out, err := m.ComputeSegments(ctx, s.ID, 3)
	require.NoError(t, err)
	assert.Len(t, out.Segments, 3)
	assert.Equal(t, StateSegmentsComputed, s.Snapshot().State)

	require.NoError(t, m.AcceptSegments(s.ID))
	view := s.Snapshot()
	assert.Equal(t, StateDistributionReady, view.State)
	assert.Len(t, view.Segments, 3)

	// Every transition left a turn in the history.
	events := make([]string, len(view.History))
	for i, turn := range view.History {
		events[i] = turn.Event
	}
	assert.Equal(t, []string{
		EventCreate, EventSelectDataType, EventSubmitQuery,
		EventConfirmVariables, EventComputeSegments, EventAcceptSegments,
	}, events)
}

func TestSessionIllegalTransitions(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)

	// Querying before a data type is chosen.
	_, err = m.SubmitQuery(ctx, s.ID, "anything", fixedRetriever())
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidSessionState, segerrors.GetCode(err))
	assert.Equal(t, StateAwaitingDataType, s.Snapshot().State)

	// Confirming with nothing presented.
	err = m.ConfirmVariables(s.ID, []string{"X"})
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidSessionState, segerrors.GetCode(err))

	// Segments before confirmation.
	_, err = m.ComputeSegments(ctx, s.ID, 3)
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidSessionState, segerrors.GetCode(err))
}

func TestSessionConfirmedFrozenAfterCompute(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, ""))
	_, err = m.SubmitQuery(ctx, s.ID, "affluent", fixedRetriever(
		search.Candidate{Code: "FIN_INC", Name: "Household Income", Fused: 0.9},
		search.Candidate{Code: "DEM_AGE", Name: "Age Group", Fused: 0.8},
	))
	require.NoError(t, err)
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC"}))

	_, err = m.ComputeSegments(ctx, s.ID, 3)
	require.NoError(t, err)
	require.Equal(t, StateSegmentsComputed, s.Snapshot().State)

	// Once segments exist the confirmed set is frozen.
	err = m.ConfirmVariables(s.ID, []string{"FIN_INC", "DEM_AGE"})
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidSessionState, segerrors.GetCode(err))

	_, err = m.SubmitQuery(ctx, s.ID, "again", fixedRetriever())
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidSessionState, segerrors.GetCode(err))

	view := s.Snapshot()
	assert.Equal(t, StateSegmentsComputed, view.State)
	assert.Equal(t, []string{"FIN_INC"}, view.Confirmed)
}

func TestSessionRejectsUnknownDataType(t *testing.T) {
	m := testManager(t)

	s, err := m.Create("user-1")
	require.NoError(t, err)

	err = m.SelectDataType(s.ID, "second-party", "")
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidQuery, segerrors.GetCode(err))
	assert.Equal(t, StateAwaitingDataType, s.Snapshot().State)
}

func TestSessionRetrievalFailureLeavesState(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataThirdParty, ""))

	boom := segerrors.New(segerrors.ErrCodeSearchFailed, "all retrieval methods failed", nil)
	_, err = m.SubmitQuery(ctx, s.ID, "anything", failingRetriever(boom))
	require.Error(t, err)

	view := s.Snapshot()
	assert.Equal(t, StateAwaitingQuery, view.State)
	assert.Empty(t, view.Candidates)
	assert.Empty(t, view.LastQuery)
}

func TestSessionRefinePreservesConfirmed(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, ""))

	first := fixedRetriever(
		search.Candidate{Code: "FIN_INC", Name: "Household Income", Fused: 0.9},
		search.Candidate{Code: "DEM_AGE", Name: "Age Group", Fused: 0.8},
	)
	_, err = m.SubmitQuery(ctx, s.ID, "affluent", first)
	require.NoError(t, err)
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC"}))

	// The refined page no longer contains the confirmed variable.
	second := fixedRetriever(
		search.Candidate{Code: "BEH_SHOP", Name: "Online Shoppers", Fused: 0.7},
	)
	res, err := m.RefineQuery(ctx, s.ID, "online shoppers", second, true)
	require.NoError(t, err)

	codes := make([]string, len(res.Candidates))
	for i, c := range res.Candidates {
		codes[i] = c.Code
	}
	assert.Equal(t, []string{"BEH_SHOP", "FIN_INC"}, codes)
	// The merged-back candidate kept its original score.
	assert.Equal(t, 0.9, res.Candidates[1].Fused)

	// Confirming across both pages works.
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"BEH_SHOP", "FIN_INC"}))
	assert.Equal(t, []string{"FIN_INC", "BEH_SHOP"}, s.Snapshot().Confirmed)
}

func TestSessionRefineWithoutKeepSelected(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, ""))

	_, err = m.SubmitQuery(ctx, s.ID, "affluent",
		fixedRetriever(search.Candidate{Code: "FIN_INC", Name: "Household Income", Fused: 0.9}))
	require.NoError(t, err)
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC"}))

	res, err := m.RefineQuery(ctx, s.ID, "shoppers",
		fixedRetriever(search.Candidate{Code: "BEH_SHOP", Name: "Online Shoppers", Fused: 0.7}),
		false)
	require.NoError(t, err)

	// The returned page holds only the fresh results.
	require.Len(t, res.Candidates, 1)
	assert.Equal(t, "BEH_SHOP", res.Candidates[0].Code)

	// But the confirmed selection is still valid for confirmation.
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC", "BEH_SHOP"}))
}

func TestSessionConfirmValidatesMembership(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, ""))

	_, err = m.SubmitQuery(ctx, s.ID, "income",
		fixedRetriever(search.Candidate{Code: "FIN_INC", Name: "Household Income"}))
	require.NoError(t, err)

	err = m.ConfirmVariables(s.ID, []string{"FIN_INC", "NOT_PRESENTED"})
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeInvalidQuery, segerrors.GetCode(err))

	// Partial failure confirmed nothing.
	assert.Empty(t, s.Snapshot().Confirmed)
	assert.Equal(t, StateCandidatesPresented, s.Snapshot().State)
}

func TestSessionClusteringFailureLeavesState(t *testing.T) {
	boom := segerrors.New(segerrors.ErrCodeUpstreamUnavailable, "clusterer unreachable", nil)
	m := NewManager(
		config.SessionsConfig{TTL: time.Hour, SweepInterval: time.Hour},
		config.ClustererConfig{DefaultK: 3},
		&cluster.FakeClusterer{Err: boom},
		nil,
	)
	t.Cleanup(m.Close)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataFirstParty, ""))
	_, err = m.SubmitQuery(ctx, s.ID, "income",
		fixedRetriever(search.Candidate{Code: "FIN_INC"}))
	require.NoError(t, err)
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC"}))

	_, err = m.ComputeSegments(ctx, s.ID, 3)
	require.Error(t, err)
	assert.Equal(t, StateVariablesConfirmed, s.Snapshot().State)
	assert.Empty(t, s.Snapshot().Segments)
}

func TestSessionCancel(t *testing.T) {
	m := testManager(t)

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.Cancel(s.ID))

	assert.Equal(t, StateTerminal, s.Snapshot().State)
	_, err = m.Get(s.ID)
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeSessionNotFound, segerrors.GetCode(err))
}

func TestSessionMaxSessions(t *testing.T) {
	m := NewManager(
		config.SessionsConfig{TTL: time.Hour, SweepInterval: time.Hour, MaxSessions: 2},
		config.ClustererConfig{},
		nil,
		nil,
	)
	t.Cleanup(m.Close)

	_, err := m.Create("u1")
	require.NoError(t, err)
	_, err = m.Create("u2")
	require.NoError(t, err)

	_, err = m.Create("u3")
	require.Error(t, err)
	assert.Equal(t, segerrors.ErrCodeSessionLimit, segerrors.GetCode(err))
}

func TestSessionTTLSweep(t *testing.T) {
	m := NewManager(
		config.SessionsConfig{TTL: 10 * time.Millisecond, SweepInterval: time.Hour},
		config.ClustererConfig{},
		nil,
		nil,
	)
	t.Cleanup(m.Close)

	s, err := m.Create("u1")
	require.NoError(t, err)
	fresh, err := m.Create("u2")
	require.NoError(t, err)

	time.Sleep(20 * time.Millisecond)
	fresh.mu.Lock()
	fresh.LastTouched = time.Now()
	fresh.mu.Unlock()

	evicted := m.sweep(time.Now())
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, m.Len())

	_, err = m.Get(s.ID)
	require.Error(t, err)
	assert.Equal(t, StateTerminal, s.Snapshot().State)
}

func TestSessionDefaultSegmentCount(t *testing.T) {
	m := testManager(t)
	ctx := context.Background()

	s, err := m.Create("user-1")
	require.NoError(t, err)
	require.NoError(t, m.SelectDataType(s.ID, DataCleanRoom, "partner-x"))
	_, err = m.SubmitQuery(ctx, s.ID, "income",
		fixedRetriever(search.Candidate{Code: "FIN_INC"}))
	require.NoError(t, err)
	require.NoError(t, m.ConfirmVariables(s.ID, []string{"FIN_INC"}))

	// k=0 falls back to the configured default of 3.
	out, err := m.ComputeSegments(ctx, s.ID, 0)
	require.NoError(t, err)
	assert.Len(t, out.Segments, 3)
}
