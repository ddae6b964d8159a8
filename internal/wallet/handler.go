package wallet

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/saravananbs/genchargephase2/internal/api"
	"github.com/saravananbs/genchargephase2/internal/auth"
)

type Handler struct {
	repo Repository
}

func NewHandler(repo Repository) *Handler {
	return &Handler{repo: repo}
}

// GetBalance godoc
// @Summary      Get wallet
// @Description  Returns the caller's wallet, creating an empty one on first use.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  Wallet
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /wallet [get]
func (h *Handler) GetBalance(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	w, err := h.repo.GetOrCreateWallet(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load wallet"})
		return
	}

	c.JSON(http.StatusOK, w)
}

// ListTransactions godoc
// @Summary      List my transactions
// @Description  Returns the caller's ledger with filters, sorting and pagination.
// @Tags         wallet
// @Security     BearerAuth
// @Produce      json
// @Param        category        query  string  false  "wallet or service"
// @Param        type            query  string  false  "credit or debit"
// @Param        service_type    query  string  false  "wallet_topup, plan_purchase, autopay, referral_reward, offer_cashback"
// @Param        status          query  string  false  "pending, success or failed"
// @Param        payment_method  query  string  false  "upi, card, netbanking or wallet"
// @Param        phone           query  string  false  "target phone number"
// @Param        min_amount      query  int     false  "minimum amount in paise"
// @Param        max_amount      query  int     false  "maximum amount in paise"
// @Param        from            query  string  false  "RFC3339 lower bound"
// @Param        to              query  string  false  "RFC3339 upper bound"
// @Param        sort_by         query  string  false  "created_at or amount_paise"
// @Param        order           query  string  false  "asc or desc"
// @Param        page            query  int     false  "page (1-based)"
// @Param        page_size       query  int     false  "page size"
// @Success      200  {object}  api.ListResponse
// @Failure      401  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /wallet/transactions [get]
func (h *Handler) ListTransactions(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	f := parseTxnFilter(c)
	f.UserID = &userID

	txns, total, err := h.repo.ListTransactions(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    txns,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// AdminListTransactions godoc
// @Summary      List transactions across users
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        user_id  query  int  false  "restrict to one user"
// @Success      200  {object}  api.ListResponse
// @Failure      403  {object}  api.ErrorResponse
// @Failure      500  {object}  api.ErrorResponse
// @Router       /admin/transactions [get]
func (h *Handler) AdminListTransactions(c *gin.Context) {
	f := parseTxnFilter(c)
	if v := c.Query("user_id"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		f.UserID = &id
	}

	txns, total, err := h.repo.ListTransactions(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load transactions"})
		return
	}

	c.JSON(http.StatusOK, api.ListResponse{
		Items:    txns,
		Total:    total,
		Page:     f.Page,
		PageSize: f.PageSize,
	})
}

// AuditWallet godoc
// @Summary      Audit a user's wallet
// @Description  Recomputes the signed sum of successful wallet-category rows and compares it with the stored balance.
// @Tags         admin
// @Security     BearerAuth
// @Produce      json
// @Param        userID  path      int  true  "User ID"
// @Success      200     {object}  AuditReport
// @Failure      400     {object}  api.ErrorResponse
// @Failure      500     {object}  api.ErrorResponse
// @Router       /admin/wallets/{userID}/audit [get]
func (h *Handler) AuditWallet(c *gin.Context) {
	userID, err := strconv.Atoi(c.Param("userID"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user ID"})
		return
	}

	report, err := h.repo.Audit(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to audit wallet"})
		return
	}

	c.JSON(http.StatusOK, report)
}

func parseTxnFilter(c *gin.Context) TxnFilter {
	f := TxnFilter{
		Category:      c.Query("category"),
		Type:          c.Query("type"),
		ServiceType:   c.Query("service_type"),
		Status:        c.Query("status"),
		PaymentMethod: c.Query("payment_method"),
		PhoneNumber:   c.Query("phone"),
		SortBy:        c.DefaultQuery("sort_by", "created_at"),
		SortDesc:      c.DefaultQuery("order", "desc") == "desc",
	}

	if v := c.Query("min_amount"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MinAmount = &n
		}
	}
	if v := c.Query("max_amount"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.MaxAmount = &n
		}
	}
	if v := c.Query("from"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.From = &ts
		}
	}
	if v := c.Query("to"); v != "" {
		if ts, err := time.Parse(time.RFC3339, v); err == nil {
			f.To = &ts
		}
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	f.Page, f.PageSize = api.Page(page, size)

	return f
}
