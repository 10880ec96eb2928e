package controllers

import (
	"errors"
	"net/http"
	"time"

	"civicguardian-be/apperrors"
	"civicguardian-be/middlewares"
	"civicguardian-be/models"
	"civicguardian-be/services"

	"github.com/gin-gonic/gin"
)

type IssueController struct {
	engine  *services.Engine
	users   UserLookup
	timeout time.Duration
}

func NewIssueController(engine *services.Engine, users UserLookup, timeout time.Duration) *IssueController {
	return &IssueController{engine: engine, users: users, timeout: timeout}
}

// CreateIssue handles the creation of a new issue
func (h *IssueController) CreateIssue(c *gin.Context) {
	var input struct {
		Title       string   `json:"title" binding:"required,max=200"`
		Description string   `json:"description" binding:"required,max=5000"`
		Category    string   `json:"category" binding:"required,issuecategory"`
		Latitude    *float64 `json:"latitude" binding:"required"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		Address     string   `json:"address"`
		Images      []string `json:"images" binding:"max=5"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	issue, err := h.engine.Report(ctx, middlewares.ActorFrom(c), services.ReportCommand{
		Title:       input.Title,
		Description: input.Description,
		Category:    models.IssueCategory(input.Category),
		Latitude:    input.Latitude,
		Longitude:   input.Longitude,
		Address:     input.Address,
		Images:      input.Images,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	view, err := h.render(c, issue, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Issue reported successfully", "issue": view})
}

// GetAllIssues lists issues with optional category, status and proximity filters
func (h *IssueController) GetAllIssues(c *gin.Context) {
	var query struct {
		Category string   `form:"category"`
		Status   string   `form:"status"`
		Page     int      `form:"page"`
		Limit    int      `form:"limit"`
		Lat      *float64 `form:"lat"`
		Lng      *float64 `form:"lng"`
		Radius   float64  `form:"radius"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	page, err := h.engine.List(ctx, services.ListQuery{
		Category:     models.IssueCategory(query.Category),
		Status:       models.IssueStatus(query.Status),
		Page:         query.Page,
		Limit:        query.Limit,
		Latitude:     query.Lat,
		Longitude:    query.Lng,
		RadiusMeters: query.Radius,
	})
	if err != nil {
		respondError(c, err)
		return
	}

	pop, err := newPopulator(ctx, h.users, page.Issues, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"issues": pop.views(page.Issues),
		"pagination": gin.H{
			"page":  page.Page,
			"limit": page.Limit,
			"total": page.Total,
			"pages": page.Pages,
		},
	})
}

// GetIssue returns one issue with reporter, commenters and verifiers populated
func (h *IssueController) GetIssue(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	issue, err := h.engine.Get(ctx, id)
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.render(c, issue, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// UpdateIssueStatus lets an authority or admin move an issue to any status
func (h *IssueController) UpdateIssueStatus(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Status             string  `json:"status" binding:"required,issuestatus"`
		AssignedDepartment *string `json:"assignedDepartment"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	issue, err := h.engine.SetStatus(ctx, middlewares.ActorFrom(c), services.SetStatusCommand{
		IssueID:            id,
		Status:             models.IssueStatus(input.Status),
		AssignedDepartment: input.AssignedDepartment,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	view, err := h.render(c, issue, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Issue updated", "issue": view})
}

// UpvoteIssue toggles the caller's upvote
func (h *IssueController) UpvoteIssue(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.engine.ToggleUpvote(ctx, middlewares.ActorFrom(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// VerifyIssue records the caller's community verification
func (h *IssueController) VerifyIssue(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Verified *bool  `json:"verified" binding:"required"`
		Comment  string `json:"comment" binding:"max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	result, err := h.engine.Verify(ctx, middlewares.ActorFrom(c), services.VerifyCommand{
		IssueID:  id,
		Verified: *input.Verified,
		Comment:  input.Comment,
	})
	if errors.Is(err, services.ErrAlreadyVerified) {
		// clients expect a plain bad request for a repeated verification
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": apperrors.Message(err),
			"kind":  apperrors.KindOf(err),
		})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":               "Verification recorded",
		"verificationCount":     result.VerificationCount,
		"positiveVerifications": result.PositiveVerifications,
		"status":                result.Status,
	})
}

// CommentOnIssue appends a comment and returns the whole discussion
func (h *IssueController) CommentOnIssue(c *gin.Context) {
	id, ok := parseObjectID(c, "id")
	if !ok {
		return
	}

	var input struct {
		Text string `json:"text" binding:"required,max=1000"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, bindError(err))
		return
	}

	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	comments, err := h.engine.Comment(ctx, middlewares.ActorFrom(c), services.CommentCommand{IssueID: id, Text: input.Text})
	if err != nil {
		respondError(c, err)
		return
	}

	// reuse the populator over a throwaway issue carrying just the comments
	holder := []models.Issue{{Comments: comments}}
	pop, err := newPopulator(ctx, h.users, holder, true)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Comment added", "comments": pop.comments(comments)})
}

// GetMyIssues lists the caller's own reports, newest first
func (h *IssueController) GetMyIssues(c *gin.Context) {
	ctx, cancel := requestContext(c, h.timeout)
	defer cancel()

	issues, err := h.engine.Mine(ctx, middlewares.ActorFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	pop, err := newPopulator(ctx, h.users, issues, false)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, pop.views(issues))
}

func (h *IssueController) render(c *gin.Context, issue *models.Issue, detailed bool) (IssueView, error) {
	pop, err := newPopulator(c.Request.Context(), h.users, []models.Issue{*issue}, detailed)
	if err != nil {
		return IssueView{}, err
	}
	return pop.view(issue, detailed), nil
}
