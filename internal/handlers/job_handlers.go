package handlers

import (
	"net/http"

	"rentdesk/internal/common"
	"rentdesk/internal/jobs"

	"github.com/labstack/echo/v4"
)

// JobRunner is the part of the scheduler admins can drive over HTTP.
type JobRunner interface {
	RunNow(name string) error
	GetJobStatus() []jobs.JobInfo
}

type JobHandlers struct {
	scheduler JobRunner
}

func NewJobHandlers(scheduler JobRunner) *JobHandlers {
	return &JobHandlers{scheduler: scheduler}
}

// GetJobStatus lists scheduled jobs with their last and next run
func (h *JobHandlers) GetJobStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]interface{}{
		"jobs": h.scheduler.GetJobStatus(),
	})
}

// RunJob triggers a job outside its schedule
func (h *JobHandlers) RunJob(c echo.Context) error {
	name := c.Param("name")
	if err := h.scheduler.RunNow(name); err != nil {
		return common.SendNotFoundError(c, "Job "+name)
	}
	return c.JSON(http.StatusAccepted, map[string]string{
		"message": "Job triggered",
		"job":     name,
	})
}
