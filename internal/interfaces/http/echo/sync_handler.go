package echo

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	app "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type SyncHandler struct {
	trigger app.TriggerSync
}

func NewSyncHandler(trigger app.TriggerSync) *SyncHandler {
	return &SyncHandler{trigger: trigger}
}

type triggerSyncRequest struct {
	Preview         bool `json:"preview"`
	PreviewRowLimit int  `json:"previewRowLimit"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type apiResponse struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type jobError struct {
	Message string    `json:"message"`
	Code    string    `json:"code"`
	At      time.Time `json:"at"`
}

type jobResponse struct {
	ID        string       `json:"id"`
	FeedID    string       `json:"feedId"`
	ShopID    string       `json:"shopId"`
	Status    string       `json:"status"`
	Trigger   string       `json:"trigger"`
	IsPreview bool         `json:"isPreview"`
	File      job.FileInfo `json:"file"`
	Results   job.Results  `json:"results"`
	Progress  job.Progress `json:"progress"`
	Error     *jobError    `json:"error,omitempty"`
	StartedAt *time.Time   `json:"startedAt,omitempty"`
	EndedAt   *time.Time   `json:"endedAt,omitempty"`
	CreatedAt time.Time    `json:"createdAt"`
}

func toJobResponse(j *job.Job) jobResponse {
	resp := jobResponse{
		ID:        j.ID,
		FeedID:    j.FeedID,
		ShopID:    j.ShopID,
		Status:    string(j.Status),
		Trigger:   string(j.Trigger),
		IsPreview: j.IsPreview,
		File:      j.File,
		Results:   j.Results,
		Progress:  j.Progress,
		StartedAt: j.StartedAt,
		EndedAt:   j.CompletedAt,
		CreatedAt: j.CreatedAt,
	}
	if j.Error != nil {
		resp.Error = &jobError{Message: j.Error.Message, Code: j.Error.Code, At: j.Error.At}
	}
	return resp
}

// TriggerSync starts a sync (or preview) for a feed and returns the
// queued job. A feed with an active job answers 409.
func (h *SyncHandler) TriggerSync(c echo.Context) error {
	var req triggerSyncRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, apiResponse{Error: &errorBody{
			Code:    "bad_request",
			Message: "invalid request body",
		}})
	}

	j, err := h.trigger.Execute(c.Request().Context(), app.TriggerSyncInput{
		FeedID:          c.Param("id"),
		Trigger:         job.TriggerManual,
		IsPreview:       req.Preview,
		PreviewRowLimit: req.PreviewRowLimit,
	})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrFeedNotFound):
			return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
				Code:    "feed_not_found",
				Message: "no feed with that id",
			}})
		case errors.Is(err, app.ErrSyncInProgress):
			return c.JSON(http.StatusConflict, apiResponse{Error: &errorBody{
				Code:    "sync_in_progress",
				Message: "a sync is already running for this feed",
			}})
		default:
			return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
				Code:    "internal_error",
				Message: "failed to start sync",
			}})
		}
	}

	return c.JSON(http.StatusAccepted, apiResponse{Data: toJobResponse(j)})
}
