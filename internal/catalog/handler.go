package catalog

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// ListPlans godoc
// @Summary      List active recharge plans
// @Description  Returns the active plan catalog, optionally filtered by type, group or popularity.
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        plan_type     query     string  false  "prepaid or postpaid"
// @Param        group         query     string  false  "plan group name"
// @Param        most_popular  query     bool    false  "only most popular plans"
// @Param        page          query     int     false  "page (1-based)"
// @Param        page_size     query     int     false  "page size"
// @Success      200  {array}   Plan
// @Failure      500  {object}  api.ErrorResponse
// @Router       /plans [get]
func (h *Handler) ListPlans(c *gin.Context) {
	f := PlanFilter{
		PlanType:  c.Query("plan_type"),
		GroupName: c.Query("group"),
	}
	if v := c.Query("most_popular"); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			f.MostPopular = &b
		}
	}
	f.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	f.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	plans, err := h.repo.ListActivePlans(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plans"})
		return
	}

	c.JSON(http.StatusOK, plans)
}

// GetPlan godoc
// @Summary      Get plan by ID
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Param        planID  path      int  true  "Plan ID"
// @Success      200     {object}  Plan
// @Failure      404     {object}  api.ErrorResponse
// @Router       /plans/{planID} [get]
func (h *Handler) GetPlan(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("planID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid plan ID"})
		return
	}

	p, err := h.repo.GetPlanByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrPlanNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Plan not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load plan"})
		return
	}

	c.JSON(http.StatusOK, p)
}

// ListOffers godoc
// @Summary      List active offers
// @Tags         catalog
// @Security     BearerAuth
// @Produce      json
// @Success      200  {array}   Offer
// @Failure      500  {object}  api.ErrorResponse
// @Router       /offers [get]
func (h *Handler) ListOffers(c *gin.Context) {
	offers, err := h.repo.ListActiveOffers(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load offers"})
		return
	}

	c.JSON(http.StatusOK, offers)
}
