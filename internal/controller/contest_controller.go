package controller

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"ojudge/internal/model"
	"ojudge/internal/service"
	"ojudge/pkg/utils/response"
)

// ContestController handles contest and standings requests.
type ContestController struct {
	contests *service.ContestService
}

// NewContestController creates a new controller.
func NewContestController(contests *service.ContestService) *ContestController {
	return &ContestController{contests: contests}
}

type contestRequest struct {
	ID              *int64          `json:"id"`
	Name            string          `json:"name"`
	From            model.Timestamp `json:"from"`
	To              model.Timestamp `json:"to"`
	ProblemIDs      []int64         `json:"problem_ids"`
	UserIDs         []int64         `json:"user_ids"`
	SubmissionLimit int             `json:"submission_limit"`
}

// Save creates a contest when no id is given, or replaces an existing one.
func (h *ContestController) Save(c *gin.Context) {
	var req contestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid request body.")
		return
	}
	contest := model.Contest{
		Name:            req.Name,
		From:            req.From,
		To:              req.To,
		ProblemIDs:      req.ProblemIDs,
		UserIDs:         req.UserIDs,
		SubmissionLimit: req.SubmissionLimit,
	}
	hasID := req.ID != nil
	if hasID {
		contest.ID = *req.ID
	}
	saved, err := h.contests.Save(c.Request.Context(), contest, hasID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, saved)
}

// List returns all contests, smallest id first.
func (h *ContestController) List(c *gin.Context) {
	contests, err := h.contests.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, contests)
}

// Get returns one contest. Id 0 names the global scope, not a contest.
func (h *ContestController) Get(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	if id == 0 {
		response.BadRequest(c, "Invalid contest id 0.")
		return
	}
	contest, err := h.contests.Get(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, contest)
}

// Ranklist computes standings for the contest, or the global scope when
// the id is 0.
func (h *ContestController) Ranklist(c *gin.Context) {
	id, ok := contestID(c)
	if !ok {
		return
	}
	var rule model.RankingRule
	if err := c.ShouldBindQuery(&rule); err != nil {
		response.BadRequest(c, "Invalid ranking rule.")
		return
	}
	rows, err := h.contests.Ranklist(c.Request.Context(), id, rule)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, rows)
}

func contestID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "Invalid contest id.")
		return 0, false
	}
	return id, true
}
