package controller

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"studyhub/model"
	"studyhub/service"
)

type AssignmentController struct {
	assignments *service.AssignmentService
}

func NewAssignmentController(assignments *service.AssignmentService) *AssignmentController {
	return &AssignmentController{assignments: assignments}
}

var dueDateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04", "2006-01-02"}

func parseDueDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dueDateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid due date %q", raw)
}

func (ctrl *AssignmentController) List(c *gin.Context) {
	assignments, err := ctrl.assignments.List(c.Request.Context(), c.GetString("userId"))
	if err != nil {
		serviceError(c, err, "Failed to fetch assignments")
		return
	}
	success(c, http.StatusOK, "Assignments retrieved successfully", assignments)
}

func (ctrl *AssignmentController) Get(c *gin.Context) {
	assignment, err := ctrl.assignments.Get(c.Request.Context(), c.GetString("userId"), c.Param("id"))
	if err != nil {
		serviceError(c, err, "Failed to fetch assignment")
		return
	}
	success(c, http.StatusOK, "Assignment retrieved successfully", assignment)
}

func (ctrl *AssignmentController) Create(c *gin.Context) {
	var input struct {
		Title       string `json:"title" binding:"required"`
		Description string `json:"description"`
		DueDate     string `json:"dueDate" binding:"required"`
		Status      string `json:"status" binding:"omitempty,oneof=not-started in-progress completed"`
		Subject     string `json:"subject"`
		Priority    string `json:"priority" binding:"omitempty,oneof=low medium high"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}
	dueDate, err := parseDueDate(input.DueDate)
	if err != nil {
		fail(c, http.StatusBadRequest, "Validation failed", []FieldError{{Field: "dueDate", Message: err.Error()}})
		return
	}

	assignment, err := ctrl.assignments.Create(c.Request.Context(), c.GetString("userId"), service.AssignmentInput{
		Title:       input.Title,
		Description: input.Description,
		DueDate:     dueDate,
		Status:      model.AssignmentStatus(input.Status),
		Subject:     input.Subject,
		Priority:    model.Priority(input.Priority),
	})
	if err != nil {
		serviceError(c, err, "Failed to create assignment")
		return
	}

	logger.Infof("[%s] Assignment %s created", c.GetString("requestId"), assignment.ID)
	success(c, http.StatusCreated, "Assignment created successfully", assignment)
}

func (ctrl *AssignmentController) Update(c *gin.Context) {
	var input struct {
		Title       *string `json:"title"`
		Description *string `json:"description"`
		DueDate     *string `json:"dueDate"`
		Status      *string `json:"status" binding:"omitempty,oneof=not-started in-progress completed"`
		Subject     *string `json:"subject"`
		Priority    *string `json:"priority" binding:"omitempty,oneof=low medium high"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	patch := service.AssignmentPatch{
		Title:       input.Title,
		Description: input.Description,
		Subject:     input.Subject,
	}
	if input.DueDate != nil {
		dueDate, err := parseDueDate(*input.DueDate)
		if err != nil {
			fail(c, http.StatusBadRequest, "Validation failed", []FieldError{{Field: "dueDate", Message: err.Error()}})
			return
		}
		patch.DueDate = &dueDate
	}
	if input.Status != nil {
		status := model.AssignmentStatus(*input.Status)
		patch.Status = &status
	}
	if input.Priority != nil {
		priority := model.Priority(*input.Priority)
		patch.Priority = &priority
	}

	assignment, err := ctrl.assignments.Update(c.Request.Context(), c.GetString("userId"), c.Param("id"), patch)
	if err != nil {
		serviceError(c, err, "Failed to update assignment")
		return
	}
	success(c, http.StatusOK, "Assignment updated successfully", assignment)
}

func (ctrl *AssignmentController) Delete(c *gin.Context) {
	if err := ctrl.assignments.Delete(c.Request.Context(), c.GetString("userId"), c.Param("id")); err != nil {
		serviceError(c, err, "Failed to delete assignment")
		return
	}
	logger.Infof("[%s] Assignment %s deleted", c.GetString("requestId"), c.Param("id"))
	success(c, http.StatusOK, "Assignment deleted successfully", nil)
}
