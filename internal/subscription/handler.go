package subscription

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/saravananbs/genchargephase2/internal/api"
	"github.com/saravananbs/genchargephase2/internal/auth"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// ListMine godoc
// @Summary      List my active plans
// @Description  Returns the caller's plan history, newest validity first.
// @Tags         plans
// @Security     BearerAuth
// @Produce      json
// @Param        phone      query  string  false  "filter by phone number"
// @Param        status     query  string  false  "active or expired"
// @Param        page       query  int     false  "page (1-based)"
// @Param        page_size  query  int     false  "page size"
// @Success      200  {object}  api.ListResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /active-plans [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	f := parseFilter(c)

	plans, total, err := h.service.ListForUser(c.Request.Context(), userID, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active plans"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    plans,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// AdminList godoc
// @Summary      List active plans across users
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        user_id    query  int     false  "restrict to one user"
// @Param        phone      query  string  false  "filter by phone number"
// @Param        status     query  string  false  "active or expired"
// @Success      200  {object}  api.ListResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/active-plans [get]
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

	plans, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load active plans"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    plans,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// Sweep godoc
// @Summary      Expire lapsed plans now
// @Description  Runs the expiry sweep immediately instead of waiting for the background interval.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  gin.H
// @Failure      403  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/active-plans/sweep [post]
func (h *Handler) Sweep(c *gin.Context) {
	expired, err := h.service.SweepExpired(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "sweep failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"expired": expired})
}

func parseFilter(c *gin.Context) Filter {
	f := Filter{
		PhoneNumber: c.Query("phone"),
		Status:      c.Query("status"),
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	f.Page, f.PageSize = api.Page(page, size)

	return f
}
