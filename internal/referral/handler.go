package referral

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
// @Summary      List my referral rewards
// @Description  Returns rewards earned by the caller for referring new users.
// @Tags         referrals
// @Security     BearerAuth
// @Produce      json
// @Param        status     query  string  false  "pending or claimed"
// @Param        page       query  int     false  "page (1-based)"
// @Param        page_size  query  int     false  "page size"
// @Success      200  {object}  api.ListResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /referrals/rewards [get]
func (h *Handler) ListMine(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	f := parseFilter(c)

	rewards, total, err := h.service.ListForReferrer(c.Request.Context(), userID, f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load referral rewards"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    rewards,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// AdminList godoc
// @Summary      List referral rewards across users
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        referrer_id  query  int     false  "restrict to one referrer"
// @Param        status       query  string  false  "pending or claimed"
// @Success      200  {object}  api.ListResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/referrals/rewards [get]
func (h *Handler) AdminList(c *gin.Context) {
	f := parseFilter(c)
	if v := c.Query("referrer_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid referrer_id"})
			return
		}
		f.ReferrerID = &id
	}

	rewards, total, err := h.service.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load referral rewards"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    rewards,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

func parseFilter(c *gin.Context) Filter {
	f := Filter{
		Status: c.Query("status"),
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	f.Page, f.PageSize = api.Page(page, size)

	return f
}
