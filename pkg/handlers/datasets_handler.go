package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-risk-engine/pkg/models"
	"github.com/ekaya-inc/ekaya-risk-engine/pkg/services"
)

// GenerateDatasetRequest for POST /api/missions/{mid}/datasets
type GenerateDatasetRequest struct {
	Note string `json:"note"`
}

// DistributionsResponse for GET /api/indicators/distributions
type DistributionsResponse struct {
	Groups map[models.DistributionType][]*models.Indicator `json:"groups"`
	Stats  map[models.DistributionType]int                 `json:"stats"`
}

// DatasetsHandler handles risk dataset generation and retrieval.
type DatasetsHandler struct {
	datasetService services.DatasetService
	logger         *zap.Logger
}

// NewDatasetsHandler creates a new datasets handler.
func NewDatasetsHandler(datasetService services.DatasetService, logger *zap.Logger) *DatasetsHandler {
	return &DatasetsHandler{
		datasetService: datasetService,
		logger:         logger,
	}
}

// RegisterRoutes registers the datasets handler's routes on the given mux.
func (h *DatasetsHandler) RegisterRoutes(mux *http.ServeMux, scope ScopeMiddleware) {
	mux.HandleFunc("POST /api/missions/{mid}/datasets", scope(h.Generate))
	mux.HandleFunc("GET /api/missions/{mid}/datasets/latest", scope(h.Latest))
	mux.HandleFunc("GET /api/datasets/{did}/summary", scope(h.Summary))
	mux.HandleFunc("GET /api/indicators/distributions", scope(h.Distributions))
}

// Generate handles POST /api/missions/{mid}/datasets
func (h *DatasetsHandler) Generate(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	var req GenerateDatasetRequest
	if err := decodeOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body", h.logger)
		return
	}

	ds, err := h.datasetService.GenerateDataset(r.Context(), missionID, req.Note)
	if err != nil {
		writeServiceError(w, err, "generate_dataset_failed", h.logger)
		return
	}
	writeData(w, http.StatusCreated, ds, h.logger)
}

// Latest handles GET /api/missions/{mid}/datasets/latest
func (h *DatasetsHandler) Latest(w http.ResponseWriter, r *http.Request) {
	missionID, ok := ParseMissionID(w, r, h.logger)
	if !ok {
		return
	}

	ds, err := h.datasetService.GetLatestDataset(r.Context(), missionID)
	if err != nil {
		writeServiceError(w, err, "get_dataset_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, ds, h.logger)
}

// Summary handles GET /api/datasets/{did}/summary
func (h *DatasetsHandler) Summary(w http.ResponseWriter, r *http.Request) {
	datasetID, ok := ParseDatasetID(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.datasetService.GetDatasetSummary(r.Context(), datasetID)
	if err != nil {
		writeServiceError(w, err, "get_dataset_summary_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, summary, h.logger)
}

// Distributions handles GET /api/indicators/distributions
func (h *DatasetsHandler) Distributions(w http.ResponseWriter, r *http.Request) {
	groups, err := h.datasetService.ClassifyIndicators(r.Context())
	if err != nil {
		writeServiceError(w, err, "classify_indicators_failed", h.logger)
		return
	}
	stats, err := h.datasetService.DistributionStats(r.Context())
	if err != nil {
		writeServiceError(w, err, "distribution_stats_failed", h.logger)
		return
	}
	writeData(w, http.StatusOK, DistributionsResponse{Groups: groups, Stats: stats}, h.logger)
}
