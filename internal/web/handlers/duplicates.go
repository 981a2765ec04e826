package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mhrabal/photovault/internal/database"
	"github.com/mhrabal/photovault/internal/dedupe"
	"github.com/mhrabal/photovault/internal/web/middleware"
)

// DuplicatesHandler handles duplicate group endpoints
type DuplicatesHandler struct {
	dups       database.DuplicateWriter
	assets     database.AssetWriter
	svc        *dedupe.Service
	jobManager *DedupeJobManager
}

// NewDuplicatesHandler creates a new duplicates handler
func NewDuplicatesHandler(dups database.DuplicateWriter, assets database.AssetWriter, svc *dedupe.Service) *DuplicatesHandler {
	return &DuplicatesHandler{
		dups:       dups,
		assets:     assets,
		svc:        svc,
		jobManager: NewDedupeJobManager(),
	}
}

// DuplicateGroupResponse is the JSON shape of a duplicate group.
type DuplicateGroupResponse struct {
	DuplicateID string          `json:"duplicate_id"`
	Assets      []AssetResponse `json:"assets"`
}

// List returns all duplicate groups for the user.
func (h *DuplicatesHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserIDFromContext(r.Context())

	groups, err := h.dups.Groups(r.Context(), userID)
	if err != nil {
		log.Printf("duplicate groups lookup failed: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list duplicate groups")
		return
	}

	out := make([]DuplicateGroupResponse, len(groups))
	for i, g := range groups {
		out[i] = DuplicateGroupResponse{
			DuplicateID: g.DuplicateID,
			Assets:      toAssetResponses(g.Assets),
		}
	}
	respondJSON(w, http.StatusOK, out)
}

type resolveRequest struct {
	KeepAssetID string `json:"keep_asset_id"`
}

// Resolve keeps one asset of a group and archives the rest. The group is
// dissolved afterwards.
func (h *DuplicatesHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	duplicateID := chi.URLParam(r, "id")
	if duplicateID == "" {
		respondError(w, http.StatusBadRequest, "missing duplicate ID")
		return
	}

	var req resolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.KeepAssetID == "" {
		respondError(w, http.StatusBadRequest, "keep_asset_id is required")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	group := h.findGroup(w, r, userID, duplicateID)
	if group == nil {
		return
	}

	keepFound := false
	for _, a := range group.Assets {
		if a.ID == req.KeepAssetID {
			keepFound = true
			break
		}
	}
	if !keepFound {
		respondError(w, http.StatusBadRequest, "keep_asset_id is not part of the group")
		return
	}

	archived := 0
	for _, a := range group.Assets {
		if a.ID == req.KeepAssetID {
			continue
		}
		if err := h.assets.SetArchived(r.Context(), a.ID, true); err != nil {
			respondError(w, http.StatusInternalServerError, "failed to archive duplicates")
			return
		}
		archived++
	}

	if err := h.dups.ClearGroup(r.Context(), duplicateID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear duplicate group")
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"kept":     req.KeepAssetID,
		"archived": archived,
	})
}

// Dismiss dissolves a group without touching its assets (marks it a false positive).
func (h *DuplicatesHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	duplicateID := chi.URLParam(r, "id")
	if duplicateID == "" {
		respondError(w, http.StatusBadRequest, "missing duplicate ID")
		return
	}

	userID := middleware.UserIDFromContext(r.Context())
	if h.findGroup(w, r, userID, duplicateID) == nil {
		return
	}

	if err := h.dups.ClearGroup(r.Context(), duplicateID); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to clear duplicate group")
		return
	}
	respondJSON(w, http.StatusOK, map[string]bool{"dismissed": true})
}

// findGroup loads one of the user's duplicate groups by ID. Writes an error
// response and returns nil when it does not exist.
func (h *DuplicatesHandler) findGroup(w http.ResponseWriter, r *http.Request, userID, duplicateID string) *database.DuplicateGroup {
	groups, err := h.dups.Groups(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "failed to load duplicate groups")
		return nil
	}
	for i := range groups {
		if groups[i].DuplicateID == duplicateID {
			return &groups[i]
		}
	}
	respondError(w, http.StatusNotFound, "duplicate group not found")
	return nil
}

// StartDetection starts an async duplicate detection run over all unchecked assets.
func (h *DuplicatesHandler) StartDetection(w http.ResponseWriter, r *http.Request) {
	if active := h.jobManager.GetActiveJob(); active != nil {
		if active.GetStatus() == JobStatusRunning || active.GetStatus() == JobStatusPending {
			respondError(w, http.StatusConflict, "a detection run is already in progress")
			return
		}
	}

	job := &DedupeJob{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		StartedAt: time.Now(),
	}
	h.jobManager.SetActiveJob(job)

	go h.runDetection(job)

	respondJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(JobStatusPending),
	})
}

// runDetection executes the detection run in the background.
func (h *DuplicatesHandler) runDetection(job *DedupeJob) {
	ctx, cancel := context.WithCancel(context.Background())
	job.cancel = cancel
	defer cancel()

	job.mu.Lock()
	job.Status = JobStatusRunning
	job.mu.Unlock()
	job.SendEvent(JobEvent{Type: "started", Message: "Duplicate detection started"})

	stats, err := h.svc.Run(ctx, func(assetID string, outcome dedupe.Outcome) {
		job.mu.Lock()
		switch outcome {
		case dedupe.OutcomeSuccess:
			job.Checked++
		case dedupe.OutcomeSkipped:
			job.Skipped++
		case dedupe.OutcomeFailed:
			job.Failed++
		}
		checked, skipped, failed := job.Checked, job.Skipped, job.Failed
		job.mu.Unlock()

		job.SendEvent(JobEvent{Type: "progress", Data: map[string]int{
			"checked": checked,
			"skipped": skipped,
			"failed":  failed,
		}})
	})

	now := time.Now()
	job.mu.Lock()
	job.CompletedAt = &now
	if err != nil {
		if job.Status != JobStatusCancelled {
			job.Status = JobStatusFailed
			job.Error = err.Error()
		}
	} else {
		job.Status = JobStatusCompleted
		job.Result = &DedupeJobStats{
			Checked: stats.Checked,
			Skipped: stats.Skipped,
			Failed:  stats.Failed,
		}
	}
	status := job.Status
	job.mu.Unlock()

	switch status {
	case JobStatusCompleted:
		job.SendEvent(JobEvent{Type: "completed", Data: job.Result})
	case JobStatusFailed:
		job.SendEvent(JobEvent{Type: "failed", Message: job.Error})
	}
}

// DetectionStatus returns the state of a detection run.
func (h *DuplicatesHandler) DetectionStatus(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.mu.RLock()
	defer job.mu.RUnlock()
	respondJSON(w, http.StatusOK, job)
}

// DetectionEvents streams detection run events via SSE.
func (h *DuplicatesHandler) DetectionEvents(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r,
		func(id string) SSEJob {
			job := h.jobManager.GetJob(id)
			if job == nil {
				return nil
			}
			return job
		},
		func(job SSEJob) any {
			return job
		},
	)
}

// CancelDetection cancels a detection run.
func (h *DuplicatesHandler) CancelDetection(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")
	if jobID == "" {
		respondError(w, http.StatusBadRequest, "missing job ID")
		return
	}

	job := h.jobManager.GetJob(jobID)
	if job == nil {
		respondError(w, http.StatusNotFound, "job not found")
		return
	}

	job.Cancel()
	respondJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
}
