package handlers

import (
	"errors"
	"log"
	"net/http"

	"taskify/internal/middleware"
	"taskify/internal/models"
	"taskify/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/gofrs/uuid"
)

type TaskHandler struct {
	taskService services.TaskService
}

func NewTaskHandler(taskService services.TaskService) *TaskHandler {
	return &TaskHandler{taskService: taskService}
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, ok := middleware.UserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
	}
	return userID, ok
}

// taskID parses the path id. A malformed id is reported exactly like a
// missing task.
func taskID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.FromString(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return uuid.Nil, false
	}
	return id, true
}

func bindTaskInput(c *gin.Context) (services.TaskInput, bool) {
	var input services.TaskInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return input, false
	}
	return input, true
}

func (h *TaskHandler) ListTasks(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, tasks)
}

func (h *TaskHandler) CreateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	input, ok := bindTaskInput(c)
	if !ok {
		return
	}

	task, err := h.taskService.CreateTask(c.Request.Context(), userID, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) UpdateTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}
	input, ok := bindTaskInput(c)
	if !ok {
		return
	}

	task, err := h.taskService.UpdateTask(c.Request.Context(), userID, id, input)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) DeleteTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	if err := h.taskService.DeleteTask(c.Request.Context(), userID, id); err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (h *TaskHandler) ToggleTask(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := taskID(c)
	if !ok {
		return
	}

	task, err := h.taskService.ToggleTask(c.Request.Context(), userID, id)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (h *TaskHandler) Summary(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	tasks, err := h.taskService.ListTasks(c.Request.Context(), userID)
	if err != nil {
		handleTaskError(c, err)
		return
	}
	c.JSON(http.StatusOK, models.Summarize(tasks))
}

func handleTaskError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Message})
	case errors.Is(err, services.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid input"})
	case errors.Is(err, services.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	default:
		log.Printf("Task request %s %s failed: %v", c.Request.Method, c.Request.URL.Path, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process task request"})
	}
}
