package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services/riskmodels"
)

// ============================================================================
// Request/Response Types
// ============================================================================

// ModelListResponse for GET /api/models
type ModelListResponse struct {
	Models []riskmodels.ModelInfo `json:"models"`
	Total  int                    `json:"total"`
}

// SaveModelConfigRequest for PUT /api/models/{model_id}/config
type SaveModelConfigRequest struct {
	Enabled *bool          `json:"enabled"`
	Params  map[string]any `json:"params"`
}

// RunModelRequest for POST /api/missions/{mid}/models/{model_id}/run
type RunModelRequest struct {
	Params   map[string]any `json:"params"`
	Snapshot bool           `json:"snapshot"`
}

// EvaluationRequest for POST /api/missions/{mid}/evaluations
type EvaluationRequest struct {
	ModelIDs []string                  `json:"model_ids"`
	Params   map[string]map[string]any `json:"params"`
	Snapshot bool                      `json:"snapshot"`
}

// SnapshotListResponse for GET /api/missions/{mid}/snapshots
type SnapshotListResponse struct {
	Snapshots []*models.ResultSnapshot `json:"snapshots"`
	Total     int                      `json:"total"`
}

// ============================================================================
// Handler
// ============================================================================

// ModelsHandler exposes the model catalog, parameter presets and model runs.
type ModelsHandler struct {
	runService services.ModelRunService
	logger     *zap.Logger
}

// NewModelsHandler creates a new models handler.
func NewModelsHandler(runService services.ModelRunService, logger *zap.Logger) *ModelsHandler {
	return &ModelsHandler{
		runService: runService,
		logger:     logger,
	}
}

// RegisterRoutes registers the models handler's routes on the given mux.
func (h *ModelsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("GET /api/models", h.List)
	mux.HandleFunc("GET /api/models/{model_id}", h.Get)
	mux.HandleFunc("PUT /api/models/{model_id}/config", scope(h.SaveConfig))
	mux.HandleFunc("GET /api/model-configs", scope(h.ListConfigs))

	mission := "/api/missions/{mid}"
	mux.HandleFunc("POST "+mission+"/models/{model_id}/run", scope(h.Run))
	mux.HandleFunc("POST "+mission+"/evaluations", scope(h.Evaluate))
	mux.HandleFunc("GET "+mission+"/snapshots", scope(h.ListSnapshots))
}

// List handles GET /api/models
func (h *ModelsHandler) List(w http.ResponseWriter, r *http.Request) {
	infos := h.runService.ListModels()
	writeData(w, http.StatusOK, ModelListResponse{Models: infos, Total: len(infos)}, h.logger)
}

// Get handles GET /api/models/{model_id}
func (h *ModelsHandler) Get(w http.ResponseWriter, r *http.Request) {
	info, err := h.runService.GetModel(r.PathValue("model_id"))
	if err != nil {
		writeServiceError(w, err, "get_model_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, info, h.logger)
}

// SaveConfig handles PUT /api/models/{model_id}/config
func (h *ModelsHandler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	var req SaveModelConfigRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}
	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	cfg, err := h.runService.SaveModelConfig(r.Context(), r.PathValue("model_id"), enabled, req.Params)
	if err != nil {
		writeServiceError(w, err, "save_model_config_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, cfg, h.logger)
}

// ListConfigs handles GET /api/model-configs
func (h *ModelsHandler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.runService.ListModelConfigs(r.Context())
	if err != nil {
		writeServiceError(w, err, "list_model_configs_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, cfgs, h.logger)
}

// Run handles POST /api/missions/{mid}/models/{model_id}/run
// A model that runs but fails still returns 200; see result.success.
func (h *ModelsHandler) Run(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	var req RunModelRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}
	snapshot := req.Snapshot || queryBool(r, "snapshot")

	outcome, err := h.runService.Run(r.Context(), missionID, r.PathValue("model_id"), req.Params, snapshot)
	if err != nil {
		writeServiceError(w, err, "run_model_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, outcome, h.logger)
}

// Evaluate handles POST /api/missions/{mid}/evaluations
func (h *ModelsHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	var req EvaluationRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	eval, err := h.runService.RunAll(r.Context(), missionID, req.ModelIDs, req.Params, req.Snapshot)
	if err != nil {
		writeServiceError(w, err, "evaluation_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, eval, h.logger)
}

// ListSnapshots handles GET /api/missions/{mid}/snapshots?limit=N
func (h *ModelsHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	snaps, err := h.runService.ListSnapshots(r.Context(), missionID, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, err, "list_snapshots_failed", h.logger)
		return
	}
	if snaps == nil {
		snaps = []*models.ResultSnapshot{}
	}
	writeData(w, http.StatusOK, SnapshotListResponse{Snapshots: snaps, Total: len(snaps)}, h.logger)
}
