package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/nemo-backend/internal/domain"
)

// MemoryRequest saves a memory.
type MemoryRequest struct {
	Content  string `json:"content" example:"Prépare le concours en juin"`
	Category string `json:"category" example:"objectif"`
}

// ProjectRequest creates a project.
type ProjectRequest struct {
	Name        string `json:"name" example:"Portfolio"`
	Description string `json:"description" example:"Site perso en Go"`
}

// ListMemories godoc
// @ID          listMemories
// @Summary     List saved memories
// @Tags        Library
// @Produce     json
// @Success     200  {array}   domain.Memory
// @Failure     500  {object}  handlers.ErrorResponse  "Internal error"
// @Router      /memories [get]
func (h *Handlers) ListMemories(c *gin.Context) {
	items, err := h.Library.Memories(c.Request.Context(), userID(c))
	if err != nil {
		serviceError(c, err, "Error fetching memories")
		return
	}
	if items == nil {
		items = []domain.Memory{}
	}
	ok(c, http.StatusOK, items)
}

// CreateMemory godoc
// @ID          createMemory
// @Summary     Save a memory
// @Tags        Library
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.MemoryRequest  true  "Memory"
// @Success     200   {object}  handlers.IDResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /memories [post]
func (h *Handlers) CreateMemory(c *gin.Context) {
	var req MemoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	m, err := h.Library.AddMemory(c.Request.Context(), userID(c), req.Content, req.Category)
	if err != nil {
		serviceError(c, err, "Error saving memory")
		return
	}
	ok(c, http.StatusOK, IDResponse{ID: m.ID})
}

// DeleteMemory godoc
// @ID          deleteMemory
// @Summary     Delete a saved memory
// @Tags        Library
// @Produce     json
// @Param       id   path      string  true  "Memory ID"
// @Success     200  {object}  handlers.SuccessResponse
// @Failure     404  {object}  handlers.ErrorResponse  "Memory not found"
// @Router      /memories/{id} [delete]
func (h *Handlers) DeleteMemory(c *gin.Context) {
	if err := h.Library.DeleteMemory(c.Request.Context(), userID(c), c.Param("id")); err != nil {
		serviceError(c, err, "Error deleting memory")
		return
	}
	success(c)
}

// ListProjects godoc
// @ID          listProjects
// @Summary     List projects
// @Tags        Library
// @Produce     json
// @Success     200  {array}   domain.Project
// @Router      /projects [get]
func (h *Handlers) ListProjects(c *gin.Context) {
	items, err := h.Library.Projects(c.Request.Context(), userID(c))
	if err != nil {
		serviceError(c, err, "Error fetching projects")
		return
	}
	if items == nil {
		items = []domain.Project{}
	}
	ok(c, http.StatusOK, items)
}

// CreateProject godoc
// @ID          createProject
// @Summary     Create a project
// @Tags        Library
// @Accept      json
// @Produce     json
// @Param       body  body      handlers.ProjectRequest  true  "Project"
// @Success     200   {object}  handlers.IDResponse
// @Failure     400   {object}  handlers.ErrorResponse  "Bad request"
// @Router      /projects [post]
func (h *Handlers) CreateProject(c *gin.Context) {
	var req ProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "Invalid JSON body")
		return
	}
	p, err := h.Library.AddProject(c.Request.Context(), userID(c), req.Name, req.Description)
	if err != nil {
		serviceError(c, err, "Error saving project")
		return
	}
	ok(c, http.StatusOK, IDResponse{ID: p.ID})
}
