package handlers

import (
	"net/http"

	"github.com/Dosada05/stage-engine/services"
)

type MatchHandler struct {
	stageService services.StageService
	matchService services.MatchService
}

func NewMatchHandler(ss services.StageService, ms services.MatchService) *MatchHandler {
	return &MatchHandler{stageService: ss, matchService: ms}
}

// ListByStageHandler handles GET /stages/{stageID}/matches
func (h *MatchHandler) ListByStageHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	matches, err := h.stageService.GetMatches(r.Context(), stageID)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"matches": matches}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}

// UpdateHandler handles PUT /stages/{stageID}/matches/{matchID}. It returns
// the fresh stage aggregate (matches, rankings, warnings) rather than an
// isolated success flag.
func (h *MatchHandler) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	stageID, err := getIDFromURL(r, "stageID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}
	matchID, err := getIDFromURL(r, "matchID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	var input services.UpdateMatchInput
	if err := readJSON(w, r, &input); err != nil {
		badRequestResponse(w, r, err)
		return
	}

	stage, err := h.matchService.UpdateMatch(r.Context(), stageID, matchID, input)
	if err != nil {
		mapServiceErrorToHTTP(w, r, err)
		return
	}

	if err := writeJSON(w, http.StatusOK, jsonResponse{"stage": stage}, nil); err != nil {
		serverErrorResponse(w, r, err)
	}
}
