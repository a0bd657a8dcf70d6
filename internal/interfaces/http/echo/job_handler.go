package echo

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	app "github.com/ecomsync/feedsync/internal/application/sync"
	"github.com/ecomsync/feedsync/internal/domain/job"
)

type JobHandler struct {
	getJob  app.GetJob
	cancel  app.CancelJob
	rowLogs app.ListRowLogs
}

func NewJobHandler(getJob app.GetJob, cancel app.CancelJob, rowLogs app.ListRowLogs) *JobHandler {
	return &JobHandler{getJob: getJob, cancel: cancel, rowLogs: rowLogs}
}

func (h *JobHandler) GetJob(c echo.Context) error {
	j, err := h.getJob.Execute(c.Request().Context(), app.GetJobInput{JobID: c.Param("id")})
	if err != nil {
		if errors.Is(err, app.ErrJobNotFound) {
			return jobNotFound(c)
		}
		return internalError(c, "failed to load job")
	}
	return c.JSON(http.StatusOK, apiResponse{Data: toJobResponse(j)})
}

// CancelJob requests cancellation. The response carries the job as seen
// right after the request; a processing job may still finish its row in
// flight before the worker observes the new status.
func (h *JobHandler) CancelJob(c echo.Context) error {
	j, err := h.cancel.Execute(c.Request().Context(), app.CancelJobInput{JobID: c.Param("id")})
	if err != nil {
		switch {
		case errors.Is(err, app.ErrJobNotFound):
			return jobNotFound(c)
		case errors.Is(err, app.ErrCancelSyncJob):
			return c.JSON(http.StatusConflict, apiResponse{Error: &errorBody{
				Code:    "not_cancellable",
				Message: "only pending or processing jobs can be cancelled",
			}})
		default:
			return internalError(c, "failed to cancel job")
		}
	}
	return c.JSON(http.StatusOK, apiResponse{Data: toJobResponse(j)})
}

type rowLogResponse struct {
	RowNumber  int               `json:"rowNumber"`
	RawRow     map[string]string `json:"rawRow,omitempty"`
	Identifier string            `json:"identifier"`
	Operation  string            `json:"operation"`
	RecordID   string            `json:"recordId,omitempty"`
	Changes    []job.FieldChange `json:"changes,omitempty"`
	Status     string            `json:"status"`
	Error      string            `json:"error,omitempty"`
	Warnings   []string          `json:"warnings,omitempty"`
	DurationMs int64             `json:"durationMs"`
	CreatedAt  time.Time         `json:"createdAt"`
}

func (h *JobHandler) ListJobRows(c echo.Context) error {
	offset, _ := strconv.Atoi(c.QueryParam("offset"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	logs, err := h.rowLogs.Execute(c.Request().Context(), app.ListRowLogsInput{
		JobID:  c.Param("id"),
		Offset: offset,
		Limit:  limit,
	})
	if err != nil {
		if errors.Is(err, app.ErrJobNotFound) {
			return jobNotFound(c)
		}
		return internalError(c, "failed to load row logs")
	}

	rows := make([]rowLogResponse, 0, len(logs))
	for _, l := range logs {
		rows = append(rows, rowLogResponse{
			RowNumber:  l.RowNumber,
			RawRow:     l.RawRow,
			Identifier: l.Identifier,
			Operation:  string(l.Operation),
			RecordID:   l.RecordID,
			Changes:    l.Changes,
			Status:     string(l.Status),
			Error:      l.ErrorMsg,
			Warnings:   l.Warnings,
			DurationMs: l.Duration.Milliseconds(),
			CreatedAt:  l.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, apiResponse{Data: rows})
}

func jobNotFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, apiResponse{Error: &errorBody{
		Code:    "job_not_found",
		Message: "no job with that id",
	}})
}

func internalError(c echo.Context, msg string) error {
	return c.JSON(http.StatusInternalServerError, apiResponse{Error: &errorBody{
		Code:    "internal_error",
		Message: msg,
	}})
}
