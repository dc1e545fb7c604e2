package api

import (
	"net/http"
	"strings"

	"github.com/summerlia/zhuhaibay/models"
	"github.com/summerlia/zhuhaibay/services"
	"github.com/summerlia/zhuhaibay/storage"
	"github.com/summerlia/zhuhaibay/utils"
)

// RefreshController is the part of the refresher the API drives.
type RefreshController interface {
	StartRefresh() (bool, models.RefreshStatus)
	Status() models.RefreshStatus
}

// Handler serves the snapshot and refresh endpoints.
type Handler struct {
	store     storage.SnapshotStore
	refresher RefreshController
	insights  *services.InsightService
	logger    *utils.Logger
}

// latestRecord is the stored envelope of the newest snapshot.
type latestRecord struct {
	Timestamp      string        `json:"timestamp"`
	AvailableUnits int           `json:"available_units"`
	TotalProjects  int           `json:"total_projects"`
	Details        latestDetails `json:"details"`
}

type latestDetails struct {
	TotalProjects       int                    `json:"total_projects"`
	TotalAvailableUnits int                    `json:"total_available_units"`
	Properties          []models.ListingRecord `json:"properties"`
}

// Records lists every snapshot summary in chronological order.
func (h *Handler) Records(w http.ResponseWriter, r *http.Request) {
	sums, err := h.store.ListSnapshotSummaries(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, sums, h.logger)
}

// Latest returns the newest snapshot, or null data when nothing is stored.
func (h *Handler) Latest(w http.ResponseWriter, r *http.Request) {
	snap, err := h.store.ReadLatestSnapshot(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	if snap == nil {
		WriteData(w, http.StatusOK, nil, h.logger)
		return
	}
	WriteData(w, http.StatusOK, latestRecord{
		Timestamp:      snap.Timestamp,
		AvailableUnits: snap.TotalAvailableUnits,
		TotalProjects:  snap.TotalProjects,
		Details: latestDetails{
			TotalProjects:       snap.TotalProjects,
			TotalAvailableUnits: snap.TotalAvailableUnits,
			Properties:          snap.Records,
		},
	}, h.logger)
}

// Properties lists every known project name.
func (h *Handler) Properties(w http.ResponseWriter, r *http.Request) {
	names, err := h.store.ListProjectNames(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, names, h.logger)
}

// PropertyHistory returns one project's unit counts over time. Unknown
// projects yield an empty list.
func (h *Handler) PropertyHistory(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.PathValue("name"))
	if name == "" {
		WriteError(w, http.StatusBadRequest, "project name is required", nil, h.logger)
		return
	}

	hist, err := h.store.ReadProjectHistory(r.Context(), name)
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, hist, h.logger)
}

// LatestProperties returns each project's units as of the newest snapshot.
func (h *Handler) LatestProperties(w http.ResponseWriter, r *http.Request) {
	latest, err := h.store.ReadLatestPerProject(r.Context())
	if err != nil {
		h.storeError(w, r, err)
		return
	}
	WriteData(w, http.StatusOK, latest, h.logger)
}

// Refresh starts a background refresh. A busy refresher answers 429 with
// the status of the run in progress.
func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	accepted, st := h.refresher.StartRefresh()
	if !accepted {
		WriteError(w, http.StatusTooManyRequests, "refresh already in progress", st, h.logger)
		return
	}
	WriteData(w, http.StatusAccepted, st, h.logger)
}

// RefreshStatus reports the current or last refresh run.
func (h *Handler) RefreshStatus(w http.ResponseWriter, r *http.Request) {
	WriteData(w, http.StatusOK, h.refresher.Status(), h.logger)
}

// Insights compares the newest snapshot with the one before it.
func (h *Handler) Insights(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	latest, err := h.store.ReadLatestSnapshot(ctx)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	var previous *models.Snapshot
	if latest != nil {
		if previous, err = h.store.ReadSnapshotBefore(ctx, latest.Timestamp); err != nil {
			h.storeError(w, r, err)
			return
		}
	}

	history, err := h.store.ListSnapshotSummaries(ctx)
	if err != nil {
		h.storeError(w, r, err)
		return
	}

	WriteData(w, http.StatusOK, h.insights.Generate(latest, previous, history), h.logger)
}

// NotFound answers unknown API paths.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	WriteError(w, http.StatusNotFound, "no route for "+r.Method+" "+r.URL.Path, nil, h.logger)
}

func (h *Handler) storeError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error("[api] %s %s: %v", r.Method, r.URL.Path, err)
	WriteError(w, http.StatusInternalServerError, "storage error: "+err.Error(), nil, h.logger)
}
