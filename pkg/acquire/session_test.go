package acquire

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"testing"

	errs "canvasfetch/pkg/errors"
	"canvasfetch/pkg/models"
	"canvasfetch/pkg/orientation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "searching", Searching.String())
	assert.Equal(t, "evaluating", Evaluating.String())
	assert.Equal(t, "done", Done.String())
	assert.Equal(t, "exhausted", Exhausted.String())
	assert.Equal(t, "state(9)", State(9).String())
}

func TestSessionClassifiesEachCandidate(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("met")
	b := a.add("B", fakeImage{data: pngBytes(t, 600, 900)})
	c := a.add("C", fakeImage{err: noImage("met")})
	wide := a.add("A", fakeImage{data: pngBytes(t, 1200, 800)})
	a.pages = [][]models.Candidate{{b}, {c}, {wide}}

	s := NewSession(a, fx.sessionConfig(orientation.Wide))
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, Done, s.State())
	assert.Equal(t, "met", result.Source)
	assert.Equal(t, "A", result.ID)
	assert.Equal(t, 1200, result.Width)
	assert.Equal(t, 800, result.Height)
	assert.FileExists(t, result.Path)
	assert.Equal(t, fx.store.Path("painting_a_met_A.png"), result.Path)

	outcome, ok := fx.ledger.Outcome("met", "A")
	require.True(t, ok)
	assert.Equal(t, models.Accepted, outcome)
	outcome, _ = fx.ledger.Outcome("met", "B")
	assert.Equal(t, models.Rejected, outcome)
	outcome, _ = fx.ledger.Outcome("met", "C")
	assert.Equal(t, models.Rejected, outcome)

	stats := s.Stats()
	assert.Equal(t, 3, stats.Pages)
	assert.Equal(t, 2, stats.Fetched)
	assert.Equal(t, 1, stats.Rejected)
	assert.Equal(t, 1, stats.Missing)

	item, ok := fx.catalog.Get("painting_a_met_A.png")
	require.True(t, ok)
	assert.Equal(t, "png", item.Format)
	assert.Equal(t, "https://example.org/A", item.URL)

	assert.True(t, fx.log.HasMessage("Session finished"))
}

func TestSessionSkipsLedgerHitsWithoutResolving(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ledger.Record("met", "A", models.Accepted)
	require.NoError(t, err)

	a := newFakeAdapter("met")
	a.pages = [][]models.Candidate{{a.add("A", fakeImage{data: pngBytes(t, 1200, 800)})}}

	s := NewSession(a, fx.sessionConfig(orientation.Wide))
	_, err = s.Run(context.Background())

	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))
	assert.Equal(t, Exhausted, s.State())
	assert.Equal(t, 0, a.resolveCount("A"))
	assert.Equal(t, 1, s.Stats().Skipped)
}

func TestSessionBudgetBoundsFetches(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("aic")
	tall := pngBytes(t, 10, 20)
	var page []models.Candidate
	for i := 0; i < 50; i++ {
		page = append(page, a.add(fmt.Sprintf("%d", i), fakeImage{data: tall}))
	}
	a.pages = [][]models.Candidate{page}

	cfg := fx.sessionConfig(orientation.Wide)
	cfg.Budget = 5
	s := NewSession(a, cfg)
	_, err := s.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))
	assert.Contains(t, err.Error(), "budget of 5 spent")
	assert.Equal(t, 5, s.Stats().Fetched)
	assert.Equal(t, 5, a.totalResolves())
	assert.Equal(t, 5, fx.ledger.Stats().Rejected)
}

func TestSessionFreeOutcomesDoNotSpendBudget(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("cma")
	var page []models.Candidate
	for i := 0; i < 4; i++ {
		page = append(page, a.add(fmt.Sprintf("missing-%d", i), fakeImage{err: noImage("cma")}))
	}
	for i := 0; i < 4; i++ {
		page = append(page, a.add(fmt.Sprintf("flaky-%d", i), fakeImage{err: transient("cma")}))
	}
	good := a.add("good", fakeImage{data: pngBytes(t, 40, 30)})
	a.pages = [][]models.Candidate{page, {good}}

	cfg := fx.sessionConfig(orientation.Any)
	cfg.Budget = 1
	s := NewSession(a, cfg)
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "good", result.ID)
	stats := s.Stats()
	assert.Equal(t, 4, stats.Missing)
	assert.Equal(t, 4, stats.Transient)
	assert.Equal(t, 1, stats.Fetched)

	// transient failures leave no trace
	assert.False(t, fx.ledger.IsSeen("cma", "flaky-0"))
	assert.True(t, fx.ledger.IsSeen("cma", "missing-0"))
}

func TestSessionUndecodableIsRejected(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("harvard")
	a.pages = [][]models.Candidate{{a.add("html", fakeImage{data: []byte("<html>not found</html>")})}}

	s := NewSession(a, fx.sessionConfig(orientation.Any))
	_, err := s.Run(context.Background())

	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))
	assert.Equal(t, 1, s.Stats().Fetched)
	outcome, ok := fx.ledger.Outcome("harvard", "html")
	require.True(t, ok)
	assert.Equal(t, models.Rejected, outcome)
}

func TestSessionPermanentFetchErrorSpendsBudget(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("rijks")
	a.pages = [][]models.Candidate{{a.add("gone", fakeImage{err: errs.FromStatus("rijks", 404)})}}

	cfg := fx.sessionConfig(orientation.Any)
	cfg.Budget = 1
	s := NewSession(a, cfg)
	_, err := s.Run(context.Background())

	assert.Contains(t, err.Error(), "budget of 1 spent")
	assert.True(t, fx.ledger.IsSeen("rijks", "gone"))
}

func TestSessionTransientOnlyExhaustionWrapsCause(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("met")
	a.pages = [][]models.Candidate{{
		a.add("1", fakeImage{err: transient("met")}),
		a.add("2", fakeImage{err: transient("met")}),
	}}

	s := NewSession(a, fx.sessionConfig(orientation.Any))
	_, err := s.Run(context.Background())

	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 0, fx.ledger.Stats().Rejected)
	assert.False(t, fx.ledger.IsSeen("met", "1"))
}

func TestSessionCredentialsFailureIsHard(t *testing.T) {
	t.Run("search", func(t *testing.T) {
		fx := newFixture(t)
		a := newFakeAdapter("harvard")
		a.searchErr = errs.New(errs.KindCredentials, "harvard", "missing API key")

		s := NewSession(a, fx.sessionConfig(orientation.Any))
		_, err := s.Run(context.Background())
		assert.True(t, errs.Is(err, errs.KindCredentials))
		assert.Equal(t, 1, a.searches)
	})

	t.Run("resolve", func(t *testing.T) {
		fx := newFixture(t)
		a := newFakeAdapter("rijks")
		a.pages = [][]models.Candidate{{a.add("1", fakeImage{err: errs.New(errs.KindCredentials, "rijks", "invalid key")})}}

		s := NewSession(a, fx.sessionConfig(orientation.Any))
		_, err := s.Run(context.Background())
		assert.True(t, errs.Is(err, errs.KindCredentials))
		assert.False(t, fx.ledger.IsSeen("rijks", "1"))
	})
}

func TestSessionPageCap(t *testing.T) {
	fx := newFixture(t)
	_, err := fx.ledger.Record("aic", "seen", models.Rejected)
	require.NoError(t, err)

	a := newFakeAdapter("aic")
	a.pages = [][]models.Candidate{{a.add("seen", fakeImage{})}}
	a.endless = true

	cfg := fx.sessionConfig(orientation.Any)
	cfg.MaxPages = 3
	s := NewSession(a, cfg)
	_, err = s.Run(context.Background())

	assert.Contains(t, err.Error(), "page cap of 3 reached")
	assert.Equal(t, 3, a.searches)
	assert.Equal(t, 3, s.Stats().Skipped)
}

func TestSessionSearchFailuresCountTowardPageCap(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("cma")
	a.searchErr = transient("cma")

	cfg := fx.sessionConfig(orientation.Any)
	cfg.MaxPages = 4
	s := NewSession(a, cfg)
	_, err := s.Run(context.Background())

	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))
	assert.Contains(t, err.Error(), "connection reset")
	assert.Equal(t, 4, a.searches)
}

func TestSessionHonoursCancellation(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("met")
	a.pages = [][]models.Candidate{{a.add("1", fakeImage{data: pngBytes(t, 2, 1)})}}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewSession(a, fx.sessionConfig(orientation.Any))
	_, err := s.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, a.searches)
}

func TestSessionReusesExistingFile(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("met")
	a.pages = [][]models.Candidate{{a.add("7", fakeImage{data: pngBytes(t, 30, 20)})}}

	name := "painting_7_met_7.png"
	_, _, err := fx.store.Save(name, []byte("earlier bytes"))
	require.NoError(t, err)

	s := NewSession(a, fx.sessionConfig(orientation.Wide))
	result, err := s.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, result.Existed)
	data, err := os.ReadFile(result.Path)
	require.NoError(t, err)
	assert.Equal(t, "earlier bytes", string(data))
	assert.True(t, fx.ledger.IsSeen("met", "7"))
}

func TestSessionSquareCountsAsWide(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("aic")
	a.pages = [][]models.Candidate{{a.add("sq", fakeImage{data: pngBytes(t, 50, 50)})}}

	s := NewSession(a, fx.sessionConfig(orientation.Tall))
	_, err := s.Run(context.Background())
	assert.True(t, errs.Is(err, errs.KindAdapterExhausted))

	fx2 := newFixture(t)
	a2 := newFakeAdapter("aic")
	a2.pages = [][]models.Candidate{{a2.add("sq", fakeImage{data: pngBytes(t, 50, 50)})}}
	result, err := NewSession(a2, fx2.sessionConfig(orientation.Wide)).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "sq", result.ID)
}

func TestSessionShufflesEachPage(t *testing.T) {
	ids := []string{"1", "2", "3", "4", "5", "6", "7", "8"}
	orders := make(map[string]bool)
	for seed := int64(0); seed < 20; seed++ {
		fx := newFixture(t)
		a := newFakeAdapter("met")
		var page []models.Candidate
		for _, id := range ids {
			page = append(page, a.add(id, fakeImage{data: []byte("not an image")}))
		}
		a.pages = [][]models.Candidate{page}

		cfg := fx.sessionConfig(orientation.Any)
		cfg.Rand = rand.New(rand.NewSource(seed))
		_, err := NewSession(a, cfg).Run(context.Background())
		require.True(t, errs.Is(err, errs.KindAdapterExhausted))

		order := a.resolveOrder()
		assert.ElementsMatch(t, ids, order)
		orders[strings.Join(order, ",")] = true
	}
	assert.Greater(t, len(orders), 1, "candidate order must depend on the random source")
}

func TestSessionLedgerWriteFailureIsHard(t *testing.T) {
	fx := newFixture(t)
	a := newFakeAdapter("met")
	a.pages = [][]models.Candidate{{a.add("B", fakeImage{data: pngBytes(t, 600, 900)})}}

	cfg := fx.sessionConfig(orientation.Wide)
	cfg.Ledger = brokenLedger{fx.ledger}
	_, err := NewSession(a, cfg).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.KindPersistence))
	assert.False(t, errs.Is(err, errs.KindAdapterExhausted))

	// On acceptance the file is written before the failed record
	b := newFakeAdapter("aic")
	b.pages = [][]models.Candidate{{b.add("W", fakeImage{data: pngBytes(t, 900, 600)})}}
	cfg.Ledger = brokenLedger{fx.ledger}
	_, err = NewSession(b, cfg).Run(context.Background())
	assert.True(t, errs.Is(err, errs.KindPersistence))
	assert.FileExists(t, fx.store.Path("painting_w_aic_W.png"))
	assert.False(t, fx.ledger.IsSeen("aic", "W"))
}
