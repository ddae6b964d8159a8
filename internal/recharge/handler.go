package recharge

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/saravananbs/genchargephase2/internal/api"
	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

// TopUp godoc
// @Summary      Top up a wallet
// @Description  Credits the caller's wallet through the payment gateway, or transfers balance to another account when the method is wallet.
// @Tags         wallet
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string        true  "client-chosen key; retries with the same key replay the first outcome"
// @Param        request          body      TopUpRequest  true  "Top-up details"
// @Success      201  {object}  Result
// @Success      200  {object}  Result  "replayed from a completed key"
// @Failure      400  {object}  api.ErrorResponse
// @Failure      402  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /wallet/topup [post]
func (h *Handler) TopUp(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	var req TopUpRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondInvalid(c, err)
		return
	}

	result, err := h.service.TopUp(c.Request.Context(), userID, key, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(statusFor(result), result)
}

// Subscribe godoc
// @Summary      Purchase a plan
// @Description  Buys and activates a plan for a phone number, funded from the wallet or through the payment gateway.
// @Tags         recharges
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header    string            true  "client-chosen key; retries with the same key replay the first outcome"
// @Param        request          body      SubscribeRequest  true  "Purchase details"
// @Success      201  {object}  Result
// @Success      200  {object}  Result  "replayed from a completed key"
// @Failure      400  {object}  api.ErrorResponse
// @Failure      402  {object}  api.ErrorResponse
// @Failure      404  {object}  api.ErrorResponse
// @Failure      409  {object}  api.ErrorResponse
// @Failure      502  {object}  api.ErrorResponse
// @Router       /recharges [post]
func (h *Handler) Subscribe(c *gin.Context) {
	userID, ok := auth.GetUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	key := c.GetHeader("Idempotency-Key")
	if key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Idempotency-Key header is required"})
		return
	}

	var req SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.RespondInvalid(c, err)
		return
	}

	result, err := h.service.Subscribe(c.Request.Context(), userID, wallet.SourceUser, key, req)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(statusFor(result), result)
}

func statusFor(r *Result) int {
	if r.Replayed {
		return http.StatusOK
	}
	return http.StatusCreated
}

func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ErrCatalogNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ErrInsufficientBalance):
		c.JSON(http.StatusPaymentRequired, gin.H{"error": err.Error()})
	case errors.Is(err, ErrSettlementPending):
		c.JSON(http.StatusAccepted, gin.H{"status": "pending", "message": err.Error()})
	case errors.Is(err, ErrSettlementFailed):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	case errors.Is(err, ErrConcurrentConflict), errors.Is(err, ErrDuplicateRequest):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, ErrStorageUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
