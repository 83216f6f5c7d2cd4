// Package casebase provides the append-only case memory: exact-match recall
// of prior accepted recommendations and persistence of new ones.
package casebase

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// timestampLayout is the wire format for case timestamps.
const timestampLayout = "2006-01-02 15:04:05"

// recordFields is the fixed field count of a stored case row.
const recordFields = 8

// ErrMalformedRecord indicates a stored row whose JSON fields fail to parse.
// Such rows are skipped during reads, never fatal.
var ErrMalformedRecord = errors.New("malformed case record")

// ChosenModel is one accepted recommendation inside a historical case.
// SimilarityScore is nil for models recalled from history rather than ranked.
type ChosenModel struct {
	Model           string   `json:"model"`
	SimilarityScore *float64 `json:"similarity_score"`
	Source          string   `json:"source"`
}

// RefinementStep records a single attribute edit within a refinement round.
// OldValue is nil when the attribute was newly added.
type RefinementStep struct {
	Attribute string         `json:"attribute"`
	OldValue  *catalog.Value `json:"old_value"`
	NewValue  catalog.Value  `json:"new_value"`
}

// HistoricalCase is one accepted recommendation session, append-only once
// persisted.
type HistoricalCase struct {
	CaseID               string
	UserInput            catalog.Preferences
	IsRefined            bool
	RefineSteps          []RefinementStep
	RefineIterationCount int
	ChosenModels         []ChosenModel
	UserRanked           bool
	Timestamp            time.Time
}

// Record is the ordered scalar field list the store transports:
// case_id, user_input, is_refined, refine_steps, refine_iteration_count,
// chosen_models, user_ranked, timestamp.
type Record []string

// encodeRecord serializes a historical case into its wire record.
func encodeRecord(hc HistoricalCase) (Record, error) {
	userInput, err := json.Marshal(hc.UserInput)
	if err != nil {
		return nil, fmt.Errorf("marshal user_input: %w", err)
	}

	steps := hc.RefineSteps
	if steps == nil {
		steps = []RefinementStep{}
	}
	refineSteps, err := json.Marshal(steps)
	if err != nil {
		return nil, fmt.Errorf("marshal refine_steps: %w", err)
	}

	chosen, err := json.Marshal(hc.ChosenModels)
	if err != nil {
		return nil, fmt.Errorf("marshal chosen_models: %w", err)
	}

	return Record{
		hc.CaseID,
		string(userInput),
		strconv.FormatBool(hc.IsRefined),
		string(refineSteps),
		strconv.Itoa(hc.RefineIterationCount),
		string(chosen),
		strconv.FormatBool(hc.UserRanked),
		hc.Timestamp.Format(timestampLayout),
	}, nil
}

// decodeRecord parses a wire record back into a historical case. Any field
// that fails to parse yields ErrMalformedRecord.
func decodeRecord(rec Record) (HistoricalCase, error) {
	if len(rec) != recordFields {
		return HistoricalCase{}, fmt.Errorf("%w: %d fields, want %d", ErrMalformedRecord, len(rec), recordFields)
	}

	hc := HistoricalCase{CaseID: rec[0]}

	if err := json.Unmarshal([]byte(rec[1]), &hc.UserInput); err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: user_input: %v", ErrMalformedRecord, err)
	}

	refined, err := parseBool(rec[2])
	if err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: is_refined: %v", ErrMalformedRecord, err)
	}
	hc.IsRefined = refined

	if err := json.Unmarshal([]byte(rec[3]), &hc.RefineSteps); err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: refine_steps: %v", ErrMalformedRecord, err)
	}

	count, err := strconv.Atoi(strings.TrimSpace(rec[4]))
	if err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: refine_iteration_count: %v", ErrMalformedRecord, err)
	}
	hc.RefineIterationCount = count

	if err := json.Unmarshal([]byte(rec[5]), &hc.ChosenModels); err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: chosen_models: %v", ErrMalformedRecord, err)
	}

	ranked, err := parseBool(rec[6])
	if err != nil {
		return HistoricalCase{}, fmt.Errorf("%w: user_ranked: %v", ErrMalformedRecord, err)
	}
	hc.UserRanked = ranked

	// A timestamp that fails to parse is tolerated; it carries no matching
	// semantics.
	hc.Timestamp, _ = time.Parse(timestampLayout, rec[7])

	return hc, nil
}

// parseBool accepts the store's case-insensitive "true"/"false" strings.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, nil
	case "false":
		return false, nil
	}
	return false, fmt.Errorf("not a boolean: %q", s)
}

// prefSet normalizes preferences to the case-key form used for exact-set
// matching: lowercase attribute names mapped to lowercase stringified values.
func prefSet(prefs catalog.Preferences) map[string]string {
	set := make(map[string]string, len(prefs))
	for attr, value := range prefs {
		set[strings.ToLower(attr)] = strings.ToLower(value.String())
	}
	return set
}

// sameSet reports whether two case keys are identical: same size, same pairs.
// Subset or superset overlap is not a match.
func sameSet(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}
