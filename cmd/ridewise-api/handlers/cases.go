package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/ridewise-ai/ridewise/internal/casebase"
	"github.com/ridewise-ai/ridewise/internal/catalog"
)

// CasesHandler handles case base reads and writes.
type CasesHandler struct {
	logger zerolog.Logger
	memory *casebase.Memory
}

// NewCasesHandler creates a new cases handler.
func NewCasesHandler(logger zerolog.Logger, memory *casebase.Memory) *CasesHandler {
	return &CasesHandler{logger: logger, memory: memory}
}

// CreateCaseRequestDTO records one accepted recommendation.
type CreateCaseRequestDTO struct {
	Preferences catalog.Preferences       `json:"preferences"`
	ChosenModel casebase.ChosenModel      `json:"chosenModel"`
	Refined     bool                      `json:"refined"`
	RefineSteps []casebase.RefinementStep `json:"refineSteps,omitempty"`
	UserRanked  bool                      `json:"userRanked"`
}

// CaseDTO is one persisted historical case.
type CaseDTO struct {
	CaseID               string                    `json:"caseId"`
	UserInput            catalog.Preferences       `json:"userInput"`
	IsRefined            bool                      `json:"isRefined"`
	RefineSteps          []casebase.RefinementStep `json:"refineSteps"`
	RefineIterationCount int                       `json:"refineIterationCount"`
	ChosenModels         []casebase.ChosenModel    `json:"chosenModels"`
	UserRanked           bool                      `json:"userRanked"`
	Timestamp            string                    `json:"timestamp"`
}

// Create handles POST /cases.
func (h *CasesHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var reqDTO CreateCaseRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&reqDTO); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return
	}
	if len(reqDTO.Preferences) == 0 {
		writeError(w, http.StatusBadRequest, "preferences are required", "")
		return
	}
	if reqDTO.ChosenModel.Model == "" {
		writeError(w, http.StatusBadRequest, "chosenModel.model is required", "")
		return
	}

	hc, err := h.memory.Persist(ctx, reqDTO.Preferences, reqDTO.ChosenModel,
		reqDTO.Refined, reqDTO.RefineSteps, reqDTO.UserRanked)
	if err != nil {
		h.logger.Error().Err(err).Msg("Persist failed")
		writeError(w, http.StatusServiceUnavailable, "case store unavailable", err.Error())
		return
	}

	writeJSON(w, h.logger, http.StatusCreated, toCaseDTO(hc))
}

// List handles GET /cases.
func (h *CasesHandler) List(w http.ResponseWriter, r *http.Request) {
	cases, err := h.memory.ReadAll(r.Context())
	if err != nil {
		h.logger.Error().Err(err).Msg("Read cases failed")
		writeError(w, http.StatusServiceUnavailable, "case store unavailable", err.Error())
		return
	}

	dtos := make([]CaseDTO, 0, len(cases))
	for _, hc := range cases {
		dtos = append(dtos, toCaseDTO(hc))
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"cases": dtos})
}

func toCaseDTO(hc casebase.HistoricalCase) CaseDTO {
	steps := hc.RefineSteps
	if steps == nil {
		steps = []casebase.RefinementStep{}
	}
	return CaseDTO{
		CaseID:               hc.CaseID,
		UserInput:            hc.UserInput,
		IsRefined:            hc.IsRefined,
		RefineSteps:          steps,
		RefineIterationCount: hc.RefineIterationCount,
		ChosenModels:         hc.ChosenModels,
		UserRanked:           hc.UserRanked,
		Timestamp:            hc.Timestamp.Format(time.RFC3339),
	}
}
