package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/promptdeck/promptdeck-api/internal/api/middleware"
	"github.com/promptdeck/promptdeck-api/internal/api/shared"
	"github.com/promptdeck/promptdeck-api/internal/domain"
	"github.com/promptdeck/promptdeck-api/internal/pipeline"
)

// PipelineHandler serves the processing endpoints: scheduling item and batch
// processing, duplicate detection, similarity scoring, processing status, and
// the pipeline policy.
type PipelineHandler struct {
	pipeline *pipeline.Pipeline
	validate *validator.Validate
	logger   *slog.Logger
}

// NewPipelineHandler creates a PipelineHandler over the given pipeline.
func NewPipelineHandler(p *pipeline.Pipeline, logger *slog.Logger) *PipelineHandler {
	if p == nil {
		panic("pipeline cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PipelineHandler{
		pipeline: p,
		validate: validator.New(),
		logger:   logger.With("component", "pipeline_handler"),
	}
}

// Process handles POST /pipeline/process?mode=single|batch|collection. When
// the mode parameter is absent it is inferred from whichever ID field the
// body carries. Batch runs execute inline, or detached when async is set.
func (h *PipelineHandler) Process(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ProcessRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	opts := pipeline.ProcessOptions{
		SkipIfOptimized: req.SkipIfOptimized,
		ForceReprocess:  req.ForceReprocess,
	}
	for _, raw := range req.TargetModels {
		model := domain.TargetModel(raw)
		if !domain.IsValidTargetModel(model) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown target model: "+raw)
			return
		}
		opts.TargetModels = append(opts.TargetModels, model)
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		switch {
		case req.ItemID != nil:
			mode = ProcessModeSingle
		case req.CollectionID != nil:
			mode = ProcessModeCollection
		default:
			mode = ProcessModeBatch
		}
	}

	switch mode {
	case ProcessModeSingle:
		if req.ItemID == nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Single mode requires item_id")
			return
		}
		jobIDs, err := h.pipeline.ProcessItem(r.Context(), *req.ItemID, userID, opts)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, ProcessResponse{
			ItemID: *req.ItemID,
			JobIDs: jobIDs,
		})

	case ProcessModeBatch:
		if len(req.ItemIDs) == 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Batch mode requires item_ids")
			return
		}
		if req.Async {
			h.pipeline.StartBatch(req.ItemIDs, userID, opts)
			shared.RespondWithJSON(w, r, http.StatusOK, BatchAcceptedResponse{
				Status:    "accepted",
				Attempted: len(req.ItemIDs),
			})
			return
		}
		result := h.pipeline.ProcessBatch(r.Context(), req.ItemIDs, userID, opts)
		shared.RespondWithJSON(w, r, http.StatusOK, result)

	case ProcessModeCollection:
		if req.CollectionID == nil {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Collection mode requires collection_id")
			return
		}
		result, err := h.pipeline.ProcessCollection(r.Context(), *req.CollectionID, userID, opts)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, result)

	default:
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown mode: "+mode)
	}
}

// Duplicates handles POST /pipeline/duplicates?mode=detect|similarity. Detect
// (the default) schedules one deduplication pass over the caller's items;
// similarity schedules pairwise scoring of a source item against explicit
// targets.
func (h *PipelineHandler) Duplicates(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req DuplicatesRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = req.Mode
	}
	if mode != "" && mode != DuplicatesModeDetect && mode != DuplicatesModeSimilarity {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Unknown mode: "+mode)
		return
	}

	if mode == DuplicatesModeSimilarity {
		if req.SourceItemID == nil || len(req.TargetItemIDs) == 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest,
				"Similarity mode requires source_item_id and target_item_ids")
			return
		}

		jobIDs, err := h.pipeline.RunSimilarityScoring(r.Context(), *req.SourceItemID, req.TargetItemIDs, userID)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
			return
		}
		shared.RespondWithJSON(w, r, http.StatusOK, SimilarityResponse{
			SourceItemID: *req.SourceItemID,
			JobIDs:       jobIDs,
		})
		return
	}

	j, err := h.pipeline.RunDuplicateDetection(r.Context(), userID, req.CollectionID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
		return
	}
	if j == nil {
		shared.RespondWithJSON(w, r, http.StatusOK, DuplicatesResponse{
			Scheduled: false,
			Reason:    "duplicate detection disabled or fewer than two items to compare",
		})
		return
	}

	resp := NewJobResponse(j)
	shared.RespondWithJSON(w, r, http.StatusOK, DuplicatesResponse{
		Scheduled: true,
		Job:       &resp,
	})
}

// GetStatus handles GET /pipeline/status, summarizing the caller's recent
// processing activity.
func (h *PipelineHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, h.pipeline.UserStatus(userID))
}

// GetConfig handles GET /pipeline/config.
func (h *PipelineHandler) GetConfig(w http.ResponseWriter, r *http.Request) {
	shared.RespondWithJSON(w, r, http.StatusOK, NewConfigResponse(h.pipeline.Config()))
}

// UpdateConfig handles PUT /pipeline/config with a partial policy update and
// returns the resulting policy.
func (h *PipelineHandler) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r)
	if !ok {
		shared.RespondWithError(w, r, http.StatusUnauthorized, "Authentication required")
		return
	}

	var req ConfigUpdateRequest
	if !h.decodeAndValidate(w, r, &req) {
		return
	}

	update := pipeline.ConfigUpdate{
		EnableAutoClassification: req.EnableAutoClassification,
		EnableAutoOptimization:   req.EnableAutoOptimization,
		EnableDuplicateDetection: req.EnableDuplicateDetection,
		EnableQualityAssessment:  req.EnableQualityAssessment,
		BatchSize:                req.BatchSize,
	}
	if req.Priority != nil {
		priority := domain.ParseJobPriority(*req.Priority)
		update.Priority = &priority
	}

	cfg := h.pipeline.UpdateConfig(update)
	h.logger.Info("pipeline config updated via API", "user_id", userID)
	shared.RespondWithJSON(w, r, http.StatusOK, NewConfigResponse(cfg))
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the 400 response itself on failure.
func (h *PipelineHandler) decodeAndValidate(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}

	if err := h.validate.Struct(dst); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request: "+err.Error())
		return false
	}
	return true
}
