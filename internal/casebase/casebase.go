package casebase

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/internal/cache"
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// ErrStoreUnavailable wraps store failures so callers can degrade: popular
// lookup falls back to "no precedent", persist failures are reported without
// retracting already-shown rankings.
var ErrStoreUnavailable = errors.New("case store unavailable")

// ModelCount is one popularity-vote result: a model and how often users with
// the exact same preference set chose it.
type ModelCount struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// Memory is the case memory: exact-match precedent recall with popularity
// voting, and append-only persistence of accepted recommendations.
type Memory struct {
	store    Store
	cache    cache.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
	caseID   func(time.Time) string
}

// Option configures a Memory.
type Option func(*Memory)

// WithCache adds a TTL-bounded read-through cache for popular lookups.
// Staleness within the TTL is acceptable: a precedent written concurrently
// may be missed, which is the documented consistency model.
func WithCache(c cache.Client, ttl time.Duration) Option {
	return func(m *Memory) {
		m.cache = c
		m.cacheTTL = ttl
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Memory) {
		m.now = now
	}
}

// WithCaseID overrides case-id generation, for tests.
func WithCaseID(gen func(time.Time) string) Option {
	return func(m *Memory) {
		m.caseID = gen
	}
}

// New creates a case memory over the given store.
func New(store Store, logger zerolog.Logger, opts ...Option) *Memory {
	m := &Memory{
		store:  store,
		logger: logger.With().Str("component", "casebase").Logger(),
		now:    time.Now,
		caseID: newCaseID,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// newCaseID derives a case id from the wall clock plus a random suffix.
func newCaseID(now time.Time) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:6]
	return fmt.Sprintf("case_%s_%s", now.Format("20060102150405"), suffix)
}

// RetrievePopular returns the models chosen by prior users whose preference
// snapshot matches prefs exactly (same attributes, same values, key and
// value case-insensitive), ordered by vote count descending with ties broken
// by first encounter. Malformed stored records are skipped.
func (m *Memory) RetrievePopular(ctx context.Context, prefs catalog.Preferences) ([]ModelCount, error) {
	key := "popular:" + prefKey(prefs)

	if m.cache != nil {
		if data, err := m.cache.Get(ctx, key); err == nil {
			var cached []ModelCount
			if err := json.Unmarshal(data, &cached); err == nil {
				return cached, nil
			}
		}
	}

	records, err := m.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	want := prefSet(prefs)
	counts := make(map[string]int)
	var order []string

	skipped := 0
	for _, rec := range records {
		hc, err := decodeRecord(rec)
		if err != nil {
			skipped++
			continue
		}
		if !sameSet(prefSet(hc.UserInput), want) {
			continue
		}
		for _, chosen := range hc.ChosenModels {
			if chosen.Model == "" {
				continue
			}
			if _, seen := counts[chosen.Model]; !seen {
				order = append(order, chosen.Model)
			}
			counts[chosen.Model]++
		}
	}
	if skipped > 0 {
		m.logger.Debug().Int("skipped", skipped).Msg("skipped malformed case records")
	}

	result := make([]ModelCount, len(order))
	for i, model := range order {
		result[i] = ModelCount{Model: model, Count: counts[model]}
	}
	sort.SliceStable(result, func(a, b int) bool {
		return result[a].Count > result[b].Count
	})

	if m.cache != nil {
		if data, err := json.Marshal(result); err == nil {
			if err := m.cache.Set(ctx, key, data, m.cacheTTL); err != nil {
				m.logger.Debug().Err(err).Msg("popular cache set failed")
			}
		}
	}

	return result, nil
}

// Persist appends a new historical case for an accepted recommendation and
// returns it. Append-only: nothing is ever edited or de-duplicated.
func (m *Memory) Persist(ctx context.Context, prefs catalog.Preferences, chosen ChosenModel, refined bool, steps []RefinementStep, userRanked bool) (HistoricalCase, error) {
	now := m.now()
	hc := HistoricalCase{
		CaseID:               m.caseID(now),
		UserInput:            prefs.Clone(),
		IsRefined:            refined,
		RefineSteps:          steps,
		RefineIterationCount: len(steps),
		ChosenModels:         []ChosenModel{chosen},
		UserRanked:           userRanked,
		Timestamp:            now,
	}

	rec, err := encodeRecord(hc)
	if err != nil {
		return HistoricalCase{}, fmt.Errorf("encode case: %w", err)
	}
	if err := m.store.Append(ctx, rec); err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	// Best-effort invalidation so the next identical query sees this vote.
	if m.cache != nil {
		if err := m.cache.Delete(ctx, "popular:"+prefKey(prefs)); err != nil {
			m.logger.Debug().Err(err).Msg("popular cache invalidation failed")
		}
	}

	m.logger.Info().
		Str("case_id", hc.CaseID).
		Str("model", chosen.Model).
		Bool("refined", refined).
		Bool("user_ranked", userRanked).
		Msg("persisted case")

	return hc, nil
}

// ReadAll returns every decodable historical case in insertion order,
// skipping malformed records.
func (m *Memory) ReadAll(ctx context.Context) ([]HistoricalCase, error) {
	records, err := m.store.ReadAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	cases := make([]HistoricalCase, 0, len(records))
	for _, rec := range records {
		hc, err := decodeRecord(rec)
		if err != nil {
			m.logger.Debug().Err(err).Msg("skipping malformed case record")
			continue
		}
		cases = append(cases, hc)
	}
	return cases, nil
}

// prefKey derives a stable cache key from the normalized preference set.
func prefKey(prefs catalog.Preferences) string {
	set := prefSet(prefs)
	pairs := make([]string, 0, len(set))
	for k, v := range set {
		pairs = append(pairs, k+"="+v)
	}
	sort.Strings(pairs)
	sum := sha256.Sum256([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(sum[:8])
}
