package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services"
)

// CreateMissionRequest for POST /api/missions
type CreateMissionRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// MissionListResponse for GET /api/missions
type MissionListResponse struct {
	Missions []*models.Mission `json:"missions"`
	Total    int               `json:"total"`
}

// MissionsHandler handles mission HTTP requests.
type MissionsHandler struct {
	missionService services.MissionService
	logger         *zap.Logger
}

// NewMissionsHandler creates a new missions handler.
func NewMissionsHandler(missionService services.MissionService, logger *zap.Logger) *MissionsHandler {
	return &MissionsHandler{
		missionService: missionService,
		logger:         logger,
	}
}

// RegisterRoutes registers the missions handler's routes on the given mux.
func (h *MissionsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/missions", scope(h.List))
	mux.HandleFunc("POST /api/missions", scope(h.Create))
	mux.HandleFunc("GET /api/missions/{mid}", scope(h.Get))
	mux.HandleFunc("GET /api/missions/{mid}/completeness", scope(h.Completeness))
}

// List handles GET /api/missions
func (h *MissionsHandler) List(w http.ResponseWriter, r *http.Request) {
	missions, err := h.missionService.List(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_missions_failed", h.logger)
		return
	}
	if missions == nil {
		missions = []*models.Mission{}
	}
	writeData(w, http.StatusOK, MissionListResponse{Missions: missions, Total: len(missions)}, h.logger)
}

// Create handles POST /api/missions
func (h *MissionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateMissionRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	mission, err := h.missionService.Create(r.Context(), req.Name, req.Description)
	if err != nil {
		writeServiceError(w, err, "create_mission_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, mission, h.logger)
}

// Get handles GET /api/missions/{mid}
func (h *MissionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	mission, err := h.missionService.Get(r.Context(), missionID)
	if err != nil {
		writeServiceError(w, err, "get_mission_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, mission, h.logger)
}

// Completeness handles GET /api/missions/{mid}/completeness
func (h *MissionsHandler) Completeness(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	c, err := h.missionService.CheckCompleteness(r.Context(), missionID)
	if err != nil {
		writeServiceError(w, err, "check_completeness_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, c, h.logger)
}
