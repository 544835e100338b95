package controller

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"ojudge/internal/model"
	"ojudge/internal/service"
	appErr "ojudge/pkg/errors"
	"ojudge/pkg/utils/response"
)

// JobController handles submission and job lifecycle requests.
type JobController struct {
	jobs *service.JudgeService
}

// NewJobController creates a new controller.
func NewJobController(jobs *service.JudgeService) *JobController {
	return &JobController{jobs: jobs}
}

// Create accepts a submission and returns the queued job.
func (h *JobController) Create(c *gin.Context) {
	var sub model.Submission
	if err := c.ShouldBindJSON(&sub); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	job, err := h.jobs.Submit(c.Request.Context(), sub)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, job)
}

// List returns jobs matching the query filters, oldest first.
func (h *JobController) List(c *gin.Context) {
	filter, err := parseJobFilter(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs, err := h.jobs.ListJobs(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, jobs)
}

// Get returns one job.
func (h *JobController) Get(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := h.jobs.GetJob(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, job)
}

// Rejudge resets a finished job and schedules it again.
func (h *JobController) Rejudge(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	job, err := h.jobs.Rejudge(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, job)
}

// Cancel aborts a queued or running job.
func (h *JobController) Cancel(c *gin.Context) {
	id, ok := jobID(c)
	if !ok {
		return
	}
	if err := h.jobs.Cancel(c.Request.Context(), id); err != nil {
		response.Error(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func jobID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid job id.")
		return 0, false
	}
	return id, true
}

func parseJobFilter(c *gin.Context) (service.JobFilter, error) {
	var filter service.JobFilter

	if v, bad := queryInt64(c, "user_id"); bad {
		return filter, badQuery("user_id")
	} else if v != nil {
		filter.UserID = v
	}
	if name := c.Query("user_name"); name != "" {
		filter.UserName = &name
	}
	if v, bad := queryInt64(c, "contest_id"); bad {
		return filter, badQuery("contest_id")
	} else if v != nil {
		filter.ContestID = v
	}
	if v, bad := queryInt64(c, "problem_id"); bad {
		return filter, badQuery("problem_id")
	} else if v != nil {
		filter.ProblemID = v
	}
	if lang := c.Query("language"); lang != "" {
		filter.Language = &lang
	}
	if raw := c.Query("from"); raw != "" {
		t, err := time.Parse(model.TimeLayout, raw)
		if err != nil {
			return filter, badQuery("from")
		}
		ts := model.At(t)
		filter.From = &ts
	}
	if raw := c.Query("to"); raw != "" {
		t, err := time.Parse(model.TimeLayout, raw)
		if err != nil {
			return filter, badQuery("to")
		}
		ts := model.At(t)
		filter.To = &ts
	}
	if raw := c.Query("state"); raw != "" {
		switch state := model.JobState(raw); state {
		case model.StateQueueing, model.StateRunning, model.StateFinished, model.StateCanceled:
			filter.State = &state
		default:
			return filter, badQuery("state")
		}
	}
	if raw := c.Query("result"); raw != "" {
		verdict, ok := model.ParseVerdict(raw)
		if !ok {
			return filter, badQuery("result")
		}
		filter.Result = &verdict
	}
	return filter, nil
}

func badQuery(name string) error {
	return appErr.Newf(appErr.InvalidParams, "Invalid argument %s.", name)
}

func queryInt64(c *gin.Context, name string) (*int64, bool) {
	raw := c.Query(name)
	if raw == "" {
		return nil, false
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, true
	}
	return &v, false
}
