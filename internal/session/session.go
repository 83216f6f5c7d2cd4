// Package session implements the conversational refinement state machine:
// repeated rounds of retrieve-or-rank, user feedback, and preference edits
// until a terminal outcome. A Session is owned by exactly one caller and is
// not safe for concurrent use; the shared catalog and case store behind it
// are.
package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/recommend"
)

// State identifies where the session is in its round.
type State string

const (
	StateRanking          State = "ranking"
	StateAwaitingFeedback State = "awaiting_feedback"
	StateRefining         State = "refining"
	StateTerminal         State = "terminal"
)

var (
	// ErrMissingReference is fatal to a refinement round: there is no base
	// model to refine against.
	ErrMissingReference = errors.New("no base model captured for refinement")
	// ErrNoChanges guards the refinement transition: a submission that edits
	// nothing keeps the session in Refining.
	ErrNoChanges = errors.New("refinement submitted no changes")
	// ErrInvalidState rejects an operation outside its state.
	ErrInvalidState = errors.New("operation not valid in current state")
)

// RoundResult is what one Ranking round presents to the user: precedent
// votes (possibly empty) and the similarity-ranked models.
type RoundResult struct {
	Popular []casebase.ModelCount
	Ranked  []recommend.CaseRecord
}

// Session drives one user's recommendation dialogue.
type Session struct {
	cat    *catalog.Catalog
	memory *casebase.Memory
	logger zerolog.Logger
	topN   int

	state       State
	prefs       catalog.Preferences
	weights     map[string]float64
	refineLog   []casebase.RefinementStep
	everRefined bool
	refineBegun bool

	baseRef     *recommend.CaseRecord
	lastPopular []casebase.ModelCount
	lastRanked  []recommend.CaseRecord
	accepted    *casebase.HistoricalCase
}

// New creates a session from the user's initial preferences and their
// priority ranking (most important attribute first).
func New(cat *catalog.Catalog, memory *casebase.Memory, logger zerolog.Logger, topN int, prefs catalog.Preferences, ranking []string) *Session {
	return &Session{
		cat:     cat,
		memory:  memory,
		logger:  logger.With().Str("component", "session").Logger(),
		topN:    topN,
		state:   StateRanking,
		prefs:   prefs.Clone(),
		weights: recommend.WeightsFromRanking(ranking),
	}
}

// State returns the current state.
func (s *Session) State() State {
	return s.state
}

// Preferences returns a copy of the active preference set.
func (s *Session) Preferences() catalog.Preferences {
	return s.prefs.Clone()
}

// Weights returns the current priority weights.
func (s *Session) Weights() map[string]float64 {
	out := make(map[string]float64, len(s.weights))
	for k, v := range s.weights {
		out[k] = v
	}
	return out
}

// IterationCount reports the refinement iteration count shown to the user.
// It always equals the length of the append-only refine log.
func (s *Session) IterationCount() int {
	return len(s.refineLog)
}

// RefineLog returns the accumulated refinement steps.
func (s *Session) RefineLog() []casebase.RefinementStep {
	out := make([]casebase.RefinementStep, len(s.refineLog))
	copy(out, s.refineLog)
	return out
}

// Accepted returns the persisted case if the session ended in acceptance.
func (s *Session) Accepted() *casebase.HistoricalCase {
	return s.accepted
}

// FinalReference returns the last computed top-1 (or refinement base). For an
// abandoned session this is the implicit final answer, held in memory only.
func (s *Session) FinalReference() *recommend.CaseRecord {
	return s.baseRef
}

// RunRound executes one Ranking round: precedent lookup first, then
// similarity ranking, then a transition to AwaitingFeedback. Store failures
// degrade to "no precedent found"; encoding or catalog failures abort the
// round and leave the state unchanged.
func (s *Session) RunRound(ctx context.Context) (RoundResult, error) {
	if s.state != StateRanking {
		return RoundResult{}, fmt.Errorf("%w: RunRound in %s", ErrInvalidState, s.state)
	}

	popular, err := s.memory.RetrievePopular(ctx, s.prefs)
	if err != nil {
		s.logger.Warn().Err(err).Msg("precedent lookup degraded to empty")
		popular = nil
	}

	userVec, weightVec, err := recommend.Encode(s.prefs, s.weights, s.cat)
	if err != nil {
		return RoundResult{}, fmt.Errorf("encode preferences: %w", err)
	}
	ranked, err := recommend.Rank(userVec, weightVec, s.cat, s.prefs, s.topN)
	if err != nil {
		return RoundResult{}, fmt.Errorf("rank catalog: %w", err)
	}

	s.lastPopular = popular
	s.lastRanked = ranked
	if len(ranked) > 0 {
		top := ranked[0]
		s.baseRef = &top
	}
	s.state = StateAwaitingFeedback

	s.logger.Debug().
		Int("popular", len(popular)).
		Int("ranked", len(ranked)).
		Int("iteration", s.IterationCount()).
		Msg("round complete")

	return RoundResult{Popular: popular, Ranked: ranked}, nil
}

// ChooseHistorical accepts a model recalled from the case base, skipping the
// similarity result for this round, and terminates the session.
func (s *Session) ChooseHistorical(ctx context.Context, model string) (casebase.HistoricalCase, error) {
	if s.state != StateAwaitingFeedback {
		return casebase.HistoricalCase{}, fmt.Errorf("%w: ChooseHistorical in %s", ErrInvalidState, s.state)
	}

	found := false
	for _, mc := range s.lastPopular {
		if mc.Model == model {
			found = true
			break
		}
	}
	if !found {
		return casebase.HistoricalCase{}, fmt.Errorf("model %q is not a recalled precedent", model)
	}

	if row, ok := s.cat.FindModel(model); ok {
		s.baseRef = &recommend.CaseRecord{
			Model:  row.Model,
			Attrs:  row.Attrs,
			Source: recommend.SourceHistoricalCase,
		}
	}

	return s.finish(ctx, casebase.ChosenModel{
		Model:  model,
		Source: string(recommend.SourceHistoricalCase),
	}, false)
}

// AcceptTop accepts the top-1 ranked model and terminates the session.
func (s *Session) AcceptTop(ctx context.Context) (casebase.HistoricalCase, error) {
	if s.state != StateAwaitingFeedback {
		return casebase.HistoricalCase{}, fmt.Errorf("%w: AcceptTop in %s", ErrInvalidState, s.state)
	}
	if len(s.lastRanked) == 0 {
		return casebase.HistoricalCase{}, fmt.Errorf("no ranked result to accept")
	}
	return s.finish(ctx, chosenFromRecord(s.lastRanked[0]), false)
}

// AcceptAlternative accepts a non-top-1 model from the ranked list, marking
// the case user-ranked, and terminates the session.
func (s *Session) AcceptAlternative(ctx context.Context, index int) (casebase.HistoricalCase, error) {
	if s.state != StateAwaitingFeedback {
		return casebase.HistoricalCase{}, fmt.Errorf("%w: AcceptAlternative in %s", ErrInvalidState, s.state)
	}
	if index < 1 || index >= len(s.lastRanked) {
		return casebase.HistoricalCase{}, fmt.Errorf("alternative index %d out of range", index)
	}
	return s.finish(ctx, chosenFromRecord(s.lastRanked[index]), true)
}

// BeginRefinement captures the current top-1 as the refinement base and
// enters Refining. The refine log is reset only on the first entry; later
// rounds keep appending to it.
func (s *Session) BeginRefinement() error {
	if s.state != StateAwaitingFeedback {
		return fmt.Errorf("%w: BeginRefinement in %s", ErrInvalidState, s.state)
	}
	if len(s.lastRanked) == 0 {
		return ErrMissingReference
	}

	top := s.lastRanked[0]
	s.baseRef = &top
	if !s.refineBegun {
		s.refineLog = []casebase.RefinementStep{}
		s.refineBegun = true
	}
	s.state = StateRefining
	return nil
}

// Refine applies a round of attribute edits. Attributes not previously
// active may be added. Only edits whose new value differs from the old one
// are recorded; a submission with zero net changes is a no-op guarded by
// ErrNoChanges, and the session stays in Refining. A valid submission
// re-derives priority weights over the complete new attribute set from
// ranking and loops back to Ranking.
func (s *Session) Refine(edits catalog.Preferences, ranking []string) error {
	if s.state != StateRefining {
		return fmt.Errorf("%w: Refine in %s", ErrInvalidState, s.state)
	}
	if s.baseRef == nil {
		return ErrMissingReference
	}

	var steps []casebase.RefinementStep
	for attr, newValue := range edits {
		old, had := s.prefs[attr]
		if had && old.Equal(newValue) {
			continue
		}
		step := casebase.RefinementStep{Attribute: attr, NewValue: newValue}
		if had {
			oldCopy := old
			step.OldValue = &oldCopy
		}
		steps = append(steps, step)
	}

	if len(steps) == 0 {
		return ErrNoChanges
	}

	for _, step := range steps {
		s.prefs[step.Attribute] = step.NewValue
	}
	s.refineLog = append(s.refineLog, steps...)
	s.weights = recommend.WeightsFromRanking(ranking)
	s.everRefined = true
	s.state = StateRanking

	s.logger.Debug().
		Int("changes", len(steps)).
		Int("iteration", s.IterationCount()).
		Msg("refinement applied")

	return nil
}

// CancelRefinement leaves Refining for Terminal. The captured base model is
// the session's implicit final answer but is not persisted.
func (s *Session) CancelRefinement() error {
	if s.state != StateRefining {
		return fmt.Errorf("%w: CancelRefinement in %s", ErrInvalidState, s.state)
	}
	s.state = StateTerminal
	return nil
}

// Abandon terminates the session without choosing. Nothing is persisted; the
// last computed top-1 is retained in memory only.
func (s *Session) Abandon() error {
	if s.state != StateAwaitingFeedback {
		return fmt.Errorf("%w: Abandon in %s", ErrInvalidState, s.state)
	}
	s.state = StateTerminal
	return nil
}

// finish persists the chosen record and terminates the session. The session
// reaches Terminal even when persistence fails: the failure is reported, but
// the user's acceptance stands.
func (s *Session) finish(ctx context.Context, chosen casebase.ChosenModel, userRanked bool) (casebase.HistoricalCase, error) {
	s.state = StateTerminal

	hc, err := s.memory.Persist(ctx, s.prefs, chosen, s.everRefined, s.refineLog, userRanked)
	if err != nil {
		s.logger.Error().Err(err).Str("model", chosen.Model).Msg("persist failed; choice kept in memory only")
		return casebase.HistoricalCase{}, err
	}
	s.accepted = &hc
	return hc, nil
}

// chosenFromRecord converts a ranked record into its persisted summary.
func chosenFromRecord(rec recommend.CaseRecord) casebase.ChosenModel {
	score := rec.Similarity
	return casebase.ChosenModel{
		Model:           rec.Model,
		SimilarityScore: &score,
		Source:          string(rec.Source),
	}
}
