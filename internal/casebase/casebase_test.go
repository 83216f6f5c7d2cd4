package casebase

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridewise-ai/ridewise/internal/cache"
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

func testMemory(t *testing.T, opts ...Option) (*Memory, *MemoryStore) {
	t.Helper()
	store := NewMemoryStore()
	return New(store, zerolog.Nop(), opts...), store
}

func testPrefs() catalog.Preferences {
	return catalog.Preferences{
		"Brand":    catalog.String("Honda"),
		"Category": catalog.String("SportNaked"),
		"Price":    catalog.Number(30_000_000),
	}
}

func score(f float64) *float64 { return &f }

func TestPersist_ReadAllRoundTrip(t *testing.T) {
	ctx := context.Background()
	mem, store := testMemory(t)

	old := catalog.String("Sport")
	steps := []RefinementStep{
		{Attribute: "Category", OldValue: &old, NewValue: catalog.String("SportNaked")},
		{Attribute: "Price", NewValue: catalog.Number(30_000_000)},
	}

	hc, err := mem.Persist(ctx, testPrefs(), ChosenModel{
		Model:           "CB150R",
		SimilarityScore: score(0.97),
		Source:          "cosine_similarity",
	}, true, steps, false)
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`^case_\d{14}_[0-9a-f]{6}$`), hc.CaseID)
	assert.Equal(t, 2, hc.RefineIterationCount)
	assert.Equal(t, 1, store.Len())

	cases, err := mem.ReadAll(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 1)

	got := cases[0]
	assert.Equal(t, hc.CaseID, got.CaseID)
	assert.True(t, got.IsRefined)
	assert.False(t, got.UserRanked)
	assert.Equal(t, 2, got.RefineIterationCount)
	require.Len(t, got.RefineSteps, 2)
	assert.Equal(t, "Category", got.RefineSteps[0].Attribute)
	require.NotNil(t, got.RefineSteps[0].OldValue)
	assert.True(t, got.RefineSteps[0].OldValue.Equal(catalog.String("Sport")))
	assert.Nil(t, got.RefineSteps[1].OldValue)

	require.Len(t, got.ChosenModels, 1)
	assert.Equal(t, "CB150R", got.ChosenModels[0].Model)
	require.NotNil(t, got.ChosenModels[0].SimilarityScore)
	assert.InDelta(t, 0.97, *got.ChosenModels[0].SimilarityScore, 1e-12)

	// Values survive as their native JSON types.
	price, ok := got.UserInput["Price"].Float()
	require.True(t, ok)
	assert.Equal(t, 30_000_000.0, price)
}

func TestPersist_TimestampUsesInjectedClock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	mem, _ := testMemory(t,
		WithClock(func() time.Time { return now }),
		WithCaseID(func(ts time.Time) string { return "case_" + ts.Format("20060102150405") + "_aaaaaa" }),
	)

	hc, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	require.NoError(t, err)
	assert.Equal(t, "case_20260314092653_aaaaaa", hc.CaseID)

	cases, err := mem.ReadAll(ctx)
	require.NoError(t, err)
	assert.True(t, now.Equal(cases[0].Timestamp))
}

func TestRetrievePopular_ExactMatchIsCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	mem, _ := testMemory(t)

	_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	require.NoError(t, err)

	// Same pairs, different casing on both keys and values.
	query := catalog.Preferences{
		"brand":    catalog.String("HONDA"),
		"CATEGORY": catalog.String("sportnaked"),
		"price":    catalog.Number(30_000_000),
	}

	popular, err := mem.RetrievePopular(ctx, query)
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, ModelCount{Model: "CB150R", Count: 1}, popular[0])
}

func TestRetrievePopular_SubsetDoesNotMatch(t *testing.T) {
	ctx := context.Background()
	mem, _ := testMemory(t)

	_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	require.NoError(t, err)

	subset := catalog.Preferences{"Brand": catalog.String("Honda")}
	popular, err := mem.RetrievePopular(ctx, subset)
	require.NoError(t, err)
	assert.Empty(t, popular)

	superset := testPrefs()
	superset["Transmission"] = catalog.String("Manual")
	popular, err = mem.RetrievePopular(ctx, superset)
	require.NoError(t, err)
	assert.Empty(t, popular)
}

func TestRetrievePopular_CountsAndOrders(t *testing.T) {
	ctx := context.Background()
	mem, _ := testMemory(t)

	for _, model := range []string{"XSR155", "CB150R", "CB150R"} {
		_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: model}, false, nil, false)
		require.NoError(t, err)
	}

	popular, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, ModelCount{Model: "CB150R", Count: 2}, popular[0])
	assert.Equal(t, ModelCount{Model: "XSR155", Count: 1}, popular[1])
}

func TestRetrievePopular_TieBreaksByFirstEncounter(t *testing.T) {
	ctx := context.Background()
	mem, _ := testMemory(t)

	for _, model := range []string{"XSR155", "CB150R"} {
		_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: model}, false, nil, false)
		require.NoError(t, err)
	}

	popular, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	require.Len(t, popular, 2)
	assert.Equal(t, "XSR155", popular[0].Model)
	assert.Equal(t, "CB150R", popular[1].Model)
}

func TestRetrievePopular_SkipsMalformedRecords(t *testing.T) {
	ctx := context.Background()
	mem, store := testMemory(t)

	_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	require.NoError(t, err)

	// A row with broken JSON in user_input must not poison the read path.
	bad := Record{"case_x", "{not json", "false", "[]", "0", "[]", "false", "2026-01-01 00:00:00"}
	require.NoError(t, store.Append(ctx, bad))

	popular, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	require.Len(t, popular, 1)
	assert.Equal(t, "CB150R", popular[0].Model)

	cases, err := mem.ReadAll(ctx)
	require.NoError(t, err)
	assert.Len(t, cases, 1)
}

type failingStore struct{ err error }

func (s failingStore) Append(context.Context, Record) error { return s.err }

func (s failingStore) ReadAll(context.Context) ([]Record, error) { return nil, s.err }

func TestStoreFailuresAreWrapped(t *testing.T) {
	ctx := context.Background()
	mem := New(failingStore{err: errors.New("connection refused")}, zerolog.Nop())

	_, err := mem.RetrievePopular(ctx, testPrefs())
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	_, err = mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestRetrievePopular_CacheServesRepeatQueries(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryClient(100)
	t.Cleanup(func() { mc.Close() })

	store := NewMemoryStore()
	mem := New(store, zerolog.Nop(), WithCache(mc, time.Minute))

	_, err := mem.Persist(ctx, testPrefs(), ChosenModel{Model: "CB150R"}, false, nil, false)
	require.NoError(t, err)

	first, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	second, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Persisting for the same preference set invalidates the cached votes.
	_, err = mem.Persist(ctx, testPrefs(), ChosenModel{Model: "XSR155"}, false, nil, false)
	require.NoError(t, err)

	third, err := mem.RetrievePopular(ctx, testPrefs())
	require.NoError(t, err)
	assert.Len(t, third, 2)
}

func TestDecodeRecord_Malformed(t *testing.T) {
	cases := map[string]Record{
		"wrong field count": {"a", "b"},
		"bad is_refined":    {"id", "{}", "maybe", "[]", "0", "[]", "false", "2026-01-01 00:00:00"},
		"bad iteration":     {"id", "{}", "true", "[]", "many", "[]", "false", "2026-01-01 00:00:00"},
		"bad chosen_models": {"id", "{}", "true", "[]", "0", "oops", "false", "2026-01-01 00:00:00"},
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := decodeRecord(rec)
			assert.ErrorIs(t, err, ErrMalformedRecord)
		})
	}
}

func TestDecodeRecord_ToleratesBadTimestamp(t *testing.T) {
	rec := Record{"id", "{}", "true", "[]", "0", "[]", "false", "not a time"}
	hc, err := decodeRecord(rec)
	require.NoError(t, err)
	assert.True(t, hc.Timestamp.IsZero())
}

func TestParseBool(t *testing.T) {
	for _, s := range []string{"true", "TRUE", " True "} {
		v, err := parseBool(s)
		require.NoError(t, err)
		assert.True(t, v)
	}
	_, err := parseBool("1")
	assert.Error(t, err)
}
