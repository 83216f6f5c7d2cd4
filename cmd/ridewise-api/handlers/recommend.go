package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
	"github.com/ridewise-ai/ridewise/internal/recommend"
)

// RecommendHandler handles one-shot recommendation requests.
type RecommendHandler struct {
	logger zerolog.Logger
	cat    *catalog.Catalog
	memory *casebase.Memory
	topN   int
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(logger zerolog.Logger, cat *catalog.Catalog, memory *casebase.Memory, topN int) *RecommendHandler {
	return &RecommendHandler{logger: logger, cat: cat, memory: memory, topN: topN}
}

// RecommendRequestDTO is the API request for ranking.
type RecommendRequestDTO struct {
	Preferences catalog.Preferences `json:"preferences"`
	Ranking     []string            `json:"ranking,omitempty"` // attribute names, most important first
	TopN        int                 `json:"topN,omitempty"`
}

// RankedModelDTO is one similarity-ranked model.
type RankedModelDTO struct {
	Model      string              `json:"model"`
	Similarity float64             `json:"similarity"`
	FinalScore float64             `json:"finalScore"`
	Source     string              `json:"source"`
	Attrs      catalog.Preferences `json:"attributes"`
}

// PopularModelDTO is one precedent vote from the case base.
type PopularModelDTO struct {
	Model string `json:"model"`
	Count int    `json:"count"`
}

// RecommendResponseDTO is the API response.
type RecommendResponseDTO struct {
	Popular []PopularModelDTO `json:"popular"`
	Ranked  []RankedModelDTO  `json:"ranked"`
}

// Recommend handles POST /recommend.
func (h *RecommendHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO RecommendRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(reqDTO.Preferences) == 0 {
		writeError(w, http.StatusBadRequest, "preferences are required", "")
		return
	}

	topN := reqDTO.TopN
	if topN < 1 {
		topN = h.topN
	}
	weights := recommend.WeightsFromRanking(reqDTO.Ranking)

	// Precedent lookup degrades to empty; ranking still answers.
	popular, err := h.memory.RetrievePopular(ctx, reqDTO.Preferences)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Precedent lookup failed")
		popular = nil
	}

	userVec, weightVec, err := recommend.Encode(reqDTO.Preferences, weights, h.cat)
	if err != nil {
		h.logger.Error().Err(err).Msg("Encode failed")
		writeError(w, http.StatusInternalServerError, "encoding failed", err.Error())
		return
	}
	ranked, err := recommend.Rank(userVec, weightVec, h.cat, reqDTO.Preferences, topN)
	if err != nil {
		h.logger.Error().Err(err).Msg("Rank failed")
		writeError(w, http.StatusInternalServerError, "ranking failed", err.Error())
		return
	}

	resp := RecommendResponseDTO{
		Popular: make([]PopularModelDTO, 0, len(popular)),
		Ranked:  make([]RankedModelDTO, 0, len(ranked)),
	}
	for _, mc := range popular {
		resp.Popular = append(resp.Popular, PopularModelDTO{Model: mc.Model, Count: mc.Count})
	}
	for _, rec := range ranked {
		resp.Ranked = append(resp.Ranked, RankedModelDTO{
			Model:      rec.Model,
			Similarity: rec.Similarity,
			FinalScore: rec.FinalScore,
			Source:     string(rec.Source),
			Attrs:      rec.Attrs,
		})
	}

	writeJSON(w, h.logger, http.StatusOK, resp)
}
