package session

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/recommend"
)

func fixtureRow(model, category, brand string, power, price float64) catalog.Row {
	return catalog.Row{
		Model: model,
		Attrs: catalog.Preferences{
			"Category":           catalog.String(category),
			"Displacement":       catalog.Number(150),
			"PowerHP":            catalog.Number(power),
			"Brand":              catalog.String(brand),
			"Transmission":       catalog.String("Manual"),
			"ClutchType":         catalog.String("Wet Multiplate"),
			"EngineConfig":       catalog.String("Single Cylinder"),
			"FuelTank":           catalog.Number(12),
			"WeightKG":           catalog.Number(135),
			"FuelConsumptionKML": catalog.Number(40),
			"Price":              catalog.Number(price),
			"Bore":               catalog.Number(57.3),
			"Stroke":             catalog.Number(57.8),
			"PistonCount":        catalog.Number(1),
		},
	}
}

func fixtureCatalog(t *testing.T) *catalog.Catalog {
	t.Helper()
	cat, err := catalog.New([]catalog.Row{
		fixtureRow("CB150R", "SportNaked", "Honda", 15, 30_000_000),
		fixtureRow("NMAX155", "Scooter", "Yamaha", 15, 32_000_000),
		fixtureRow("XSR155", "SportHeritage", "Yamaha", 19, 36_000_000),
	})
	require.NoError(t, err)
	return cat
}

func newSession(t *testing.T, prefs catalog.Preferences, ranking []string) (*Session, *casebase.MemoryStore) {
	t.Helper()
	store := casebase.NewMemoryStore()
	memory := casebase.New(store, zerolog.Nop())
	return New(fixtureCatalog(t), memory, zerolog.Nop(), 6, prefs, ranking), store
}

func sportNakedPrefs() catalog.Preferences {
	return catalog.Preferences{"Category": catalog.String("SportNaked")}
}

func TestSession_AcceptTopPersistsUnrefinedCase(t *testing.T) {
	ctx := context.Background()
	sess, store := newSession(t, sportNakedPrefs(), []string{"Category"})

	assert.Equal(t, StateRanking, sess.State())

	result, err := sess.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateAwaitingFeedback, sess.State())
	assert.Empty(t, result.Popular)
	require.NotEmpty(t, result.Ranked)
	assert.Equal(t, "CB150R", result.Ranked[0].Model)

	hc, err := sess.AcceptTop(ctx)
	require.NoError(t, err)
	assert.Equal(t, StateTerminal, sess.State())
	assert.Equal(t, 1, store.Len())

	assert.False(t, hc.IsRefined)
	assert.False(t, hc.UserRanked)
	assert.Equal(t, 0, hc.RefineIterationCount)
	require.Len(t, hc.ChosenModels, 1)
	assert.Equal(t, "CB150R", hc.ChosenModels[0].Model)
	assert.Equal(t, string(recommend.SourceCosineSimilarity), hc.ChosenModels[0].Source)
	require.NotNil(t, hc.ChosenModels[0].SimilarityScore)
	assert.InDelta(t, 1.0, *hc.ChosenModels[0].SimilarityScore, 1e-12)

	require.NotNil(t, sess.Accepted())
	assert.Equal(t, hc.CaseID, sess.Accepted().CaseID)
}

func TestSession_AcceptAlternativeMarksUserRanked(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	result, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.True(t, len(result.Ranked) > 1)

	hc, err := sess.AcceptAlternative(ctx, 1)
	require.NoError(t, err)
	assert.True(t, hc.UserRanked)
	assert.Equal(t, result.Ranked[1].Model, hc.ChosenModels[0].Model)
	assert.Equal(t, StateTerminal, sess.State())
}

func TestSession_AcceptAlternativeRejectsTopAndOutOfRange(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)

	_, err = sess.AcceptAlternative(ctx, 0)
	assert.Error(t, err)
	_, err = sess.AcceptAlternative(ctx, 99)
	assert.Error(t, err)
	assert.Equal(t, StateAwaitingFeedback, sess.State())
}

func TestSession_RefinementLoop(t *testing.T) {
	ctx := context.Background()
	sess, store := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)

	require.NoError(t, sess.BeginRefinement())
	assert.Equal(t, StateRefining, sess.State())
	require.NotNil(t, sess.FinalReference())
	assert.Equal(t, "CB150R", sess.FinalReference().Model)

	edits := catalog.Preferences{
		"Category": catalog.String("Scooter"),
		"Brand":    catalog.String("Yamaha"),
	}
	require.NoError(t, sess.Refine(edits, []string{"Brand", "Category"}))
	assert.Equal(t, StateRanking, sess.State())
	assert.Equal(t, 2, sess.IterationCount())

	// Weights re-derived over the new ranking.
	assert.Equal(t, map[string]float64{"Brand": 2, "Category": 1}, sess.Weights())

	// Changed attribute carries its old value; added one does not.
	log := sess.RefineLog()
	byAttr := make(map[string]casebase.RefinementStep, len(log))
	for _, step := range log {
		byAttr[step.Attribute] = step
	}
	require.NotNil(t, byAttr["Category"].OldValue)
	assert.True(t, byAttr["Category"].OldValue.Equal(catalog.String("SportNaked")))
	assert.Nil(t, byAttr["Brand"].OldValue)

	result, err := sess.RunRound(ctx)
	require.NoError(t, err)
	assert.Equal(t, "NMAX155", result.Ranked[0].Model)

	hc, err := sess.AcceptTop(ctx)
	require.NoError(t, err)
	assert.True(t, hc.IsRefined)
	assert.Equal(t, 2, hc.RefineIterationCount)
	assert.Len(t, hc.RefineSteps, 2)
	assert.Equal(t, 1, store.Len())
}

func TestSession_RefineNoChangesStaysRefining(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.BeginRefinement())

	err = sess.Refine(catalog.Preferences{"Category": catalog.String("SportNaked")}, []string{"Category"})
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, StateRefining, sess.State())
	assert.Equal(t, 0, sess.IterationCount())

	err = sess.Refine(nil, nil)
	assert.ErrorIs(t, err, ErrNoChanges)
	assert.Equal(t, StateRefining, sess.State())
}

func TestSession_RefineLogAccumulatesAcrossRounds(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.BeginRefinement())
	require.NoError(t, sess.Refine(catalog.Preferences{"Brand": catalog.String("Yamaha")}, []string{"Brand", "Category"}))
	assert.Equal(t, 1, sess.IterationCount())

	_, err = sess.RunRound(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.BeginRefinement())
	require.NoError(t, sess.Refine(catalog.Preferences{"PowerHP": catalog.Number(19)}, []string{"PowerHP", "Brand", "Category"}))

	// The log never shrinks; later rounds append.
	assert.Equal(t, 2, sess.IterationCount())
}

func TestSession_CancelRefinementIsTerminalWithoutPersist(t *testing.T) {
	ctx := context.Background()
	sess, store := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.BeginRefinement())
	require.NoError(t, sess.CancelRefinement())

	assert.Equal(t, StateTerminal, sess.State())
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, sess.Accepted())
	// The captured base stays available as the implicit answer.
	require.NotNil(t, sess.FinalReference())
	assert.Equal(t, "CB150R", sess.FinalReference().Model)
}

func TestSession_AbandonPersistsNothing(t *testing.T) {
	ctx := context.Background()
	sess, store := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.NoError(t, sess.Abandon())

	assert.Equal(t, StateTerminal, sess.State())
	assert.Equal(t, 0, store.Len())
	assert.Nil(t, sess.Accepted())
}

func TestSession_ChooseHistorical(t *testing.T) {
	ctx := context.Background()
	store := casebase.NewMemoryStore()
	memory := casebase.New(store, zerolog.Nop())
	cat := fixtureCatalog(t)

	// Seed a precedent with the exact same preference set.
	_, err := memory.Persist(ctx, sportNakedPrefs(), casebase.ChosenModel{Model: "XSR155"}, false, nil, false)
	require.NoError(t, err)

	sess := New(cat, memory, zerolog.Nop(), 6, sportNakedPrefs(), []string{"Category"})
	result, err := sess.RunRound(ctx)
	require.NoError(t, err)
	require.Len(t, result.Popular, 1)
	assert.Equal(t, "XSR155", result.Popular[0].Model)

	hc, err := sess.ChooseHistorical(ctx, "XSR155")
	require.NoError(t, err)
	assert.Equal(t, StateTerminal, sess.State())
	assert.False(t, hc.UserRanked)
	require.Len(t, hc.ChosenModels, 1)
	assert.Equal(t, "XSR155", hc.ChosenModels[0].Model)
	assert.Equal(t, string(recommend.SourceHistoricalCase), hc.ChosenModels[0].Source)
	assert.Nil(t, hc.ChosenModels[0].SimilarityScore)

	require.NotNil(t, sess.FinalReference())
	assert.Equal(t, recommend.SourceHistoricalCase, sess.FinalReference().Source)
}

func TestSession_ChooseHistoricalRejectsNonPrecedent(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	_, err := sess.RunRound(ctx)
	require.NoError(t, err)

	_, err = sess.ChooseHistorical(ctx, "CB150R")
	assert.Error(t, err)
	assert.Equal(t, StateAwaitingFeedback, sess.State())
}

func TestSession_StateGuards(t *testing.T) {
	ctx := context.Background()
	sess, _ := newSession(t, sportNakedPrefs(), []string{"Category"})

	// Feedback operations are invalid before a round has run.
	_, err := sess.AcceptTop(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
	assert.ErrorIs(t, sess.BeginRefinement(), ErrInvalidState)
	assert.ErrorIs(t, sess.Refine(nil, nil), ErrInvalidState)
	assert.ErrorIs(t, sess.Abandon(), ErrInvalidState)

	_, err = sess.RunRound(ctx)
	require.NoError(t, err)

	// Ranking operations are invalid while awaiting feedback.
	_, err = sess.RunRound(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)

	require.NoError(t, sess.Abandon())

	// Nothing works after Terminal.
	_, err = sess.RunRound(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
	_, err = sess.AcceptTop(ctx)
	assert.ErrorIs(t, err, ErrInvalidState)
}

type failingStore struct{ err error }

func (s failingStore) Append(context.Context, casebase.Record) error { return s.err }

func (s failingStore) ReadAll(context.Context) ([]casebase.Record, error) { return nil, s.err }

func TestSession_StoreFailureDegradesPrecedentLookup(t *testing.T) {
	ctx := context.Background()
	memory := casebase.New(failingStore{err: assert.AnError}, zerolog.Nop())
	sess := New(fixtureCatalog(t), memory, zerolog.Nop(), 6, sportNakedPrefs(), []string{"Category"})

	result, err := sess.RunRound(ctx)
	require.NoError(t, err, "ranking proceeds without precedents")
	assert.Empty(t, result.Popular)
	assert.NotEmpty(t, result.Ranked)

	// Persist failure still terminates the session; the error is surfaced.
	_, err = sess.AcceptTop(ctx)
	assert.ErrorIs(t, err, casebase.ErrStoreUnavailable)
	assert.Equal(t, StateTerminal, sess.State())
	assert.Nil(t, sess.Accepted())
}
