package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/Dosada05/stage-engine/services"
)

type StageHandler struct {
	stageService services.StageService
}

func NewStageHandler(ss services.StageService) *StageHandler {
	return &StageHandler{stageService: ss}
}

// GetByIDHandler handles GET /stages/{stageID}
func (h *StageHandler) GetByIDHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.stageService.GetStage(r.Context(), stageID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// GenerateMatchesHandler handles POST /stages/{stageID}/matches/generate
func (h *StageHandler) GenerateMatchesHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var opts services.GenerateOptions
	if r.ContentLength > 0 {
		if err := readJSON(w, r, &opts); err != nil {
			badRequestResponse(w, r, err)
			return
		}
	}

	stage, err := h.stageService.GenerateMatches(r.Context(), stageID, opts)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusCreated, jsonResponse{"stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler handles PATCH /stages/{stageID}
func (h *StageHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateStageInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.stageService.UpdateStage(r.Context(), stageID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// LeaderboardHandler handles GET /stages/{stageID}/leaderboard?limit=
func (h *StageHandler) LeaderboardHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		limit, err = strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			badRequestResponse(w, r, errors.New("invalid limit query parameter"))
			return
		}
	}

	rankings, err := h.stageService.GetLeaderboard(r.Context(), stageID, limit)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"rankings": rankings}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
