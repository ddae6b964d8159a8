package autopay

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saravananbs/genchargephase2/internal/api"
	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/catalog"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// Create godoc
// @Summary      Create an autopay
// @Description  Registers a plan to be charged automatically from the wallet when it falls due.
// @Tags         autopays
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        request  body      CreateRequest  true  "autopay to create"
// @Success      201  {object}  Autopay
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /autopays [post]
func (h *Handler) Create(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondInvalid(c, err)
		return
	}

	entry, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, entry)
}

// ListMine godoc
// @Summary      List my autopays
// @Tags         autopays
// @Security     BearerAuth
// @Produce      json
// @Param        phone      query  string  false  "filter by phone number"
// @Param        tag        query  string  false  "onetime or regular"
// @Param        status     query  string  false  "enabled or disabled"
// @Param        page       query  int     false  "page (1-based)"
// @Param        page_size  query  int     false  "page size"
// @Success      200  {object}  api.ListResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /autopays [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	f := parseFilter(c)

	entries, total, err := h.service.ListForUser(c.Request.Context(), userID, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load autopays"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    entries,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// Get godoc
// @Summary      Get one autopay
// @Tags         autopays
// @Security     BearerAuth
// @Produce      json
// @Param        id  path  int  true  "autopay ID"
// @Success      200  {object}  Autopay
// @Failure      404  {object}  api.ErrorResponse
// @Router       /autopays/{id} [get]
func (h *Handler) Get(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid autopay id"})
		return
	}

	entry, err := h.service.Get(c.Request.Context(), userID, id)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Update godoc
// @Summary      Edit an autopay
// @Description  Partial update: only the fields present in the body change.
// @Tags         autopays
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  int            true  "autopay ID"
// @Param        request  body  UpdateRequest  true  "fields to change"
// @Success      200  {object}  Autopay
// @Failure      400  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Router       /autopays/{id} [patch]
func (h *Handler) Update(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid autopay id"})
		return
	}

	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondInvalid(c, err)
		return
	}

	entry, err := h.service.Update(c.Request.Context(), userID, id, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, entry)
}

// Delete godoc
// @Summary      Remove an autopay
// @Tags         autopays
// @Security     BearerAuth
// @Param        id  path  int  true  "autopay ID"
// @Success      204  "removed"
// @Failure      404  {object}  api.ErrorResponse
// @Router       /autopays/{id} [delete]
func (h *Handler) Delete(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid autopay id"})
		return
	}

	if err := h.service.Delete(c.Request.Context(), userID, id); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// AdminList godoc
// @Summary      List autopays across users
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        user_id  query  int     false  "restrict to one user"
// @Param        tag      query  string  false  "onetime or regular"
// @Param        status   query  string  false  "enabled or disabled"
// @Success      200  {object}  api.ListResponse
// @Failure      403  {object}  api.ErrorResponse
// @Router       /admin/autopays [get]
func (h *Handler) AdminList(c *gin.Context) {
	f := parseFilter(c)
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		f.UserID = &id
	}

	entries, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load autopays"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    entries,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// Run godoc
// @Summary      Run the due batch now
// @Description  Processes every due autopay immediately instead of waiting for the scheduler tick.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  BatchReport
// @Failure      403  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/autopays/run [post]
func (h *Handler) Run(c *gin.Context) {
	report, err := h.service.ProcessDue(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "autopay batch failed"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrAutopayNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "autopay not found"})
	case errors.Is(err, catalog.ErrPlanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plan not found or inactive"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func parseFilter(c *gin.Context) Filter {
	f := Filter{
		PhoneNumber: c.Query("phone"),
		Tag:         c.Query("tag"),
		Status:      c.Query("status"),
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	f.Page, f.PageSize = api.Page(page, size)

	return f
}
