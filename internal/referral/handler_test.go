package referral

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRewardService struct{ mock.Mock }

func (m *mockRewardService) OnPurchaseSuccess(ctx context.Context, userID int) {
	m.Called(ctx, userID)
}

func (m *mockRewardService) ListForReferrer(ctx context.Context, referrerID int, f Filter) ([]Reward, int, error) {
	args := m.Called(ctx, referrerID, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]Reward), args.Int(1), args.Error(2)
}

func (m *mockRewardService) List(ctx context.Context, f Filter) ([]Reward, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]Reward), args.Int(1), args.Error(2)
}

func setupRewardRouter(svc Service, userID int) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	if userID != 0 {
		router.Use(func(c *gin.Context) {
			c.Set("user_id", userID)
			c.Next()
		})
	}

	h := NewHandler(svc)
	router.GET("/referrals/rewards", h.ListMine)
	router.GET("/admin/referrals/rewards", h.AdminList)
	return router
}

func TestListMineRewardsScopesToCaller(t *testing.T) {
	svc := new(mockRewardService)
	svc.On("ListForReferrer", mock.Anything, 7, mock.MatchedBy(func(f Filter) bool {
		return f.Status == StatusClaimed && f.Page == 1 && f.PageSize == 20
	})).Return([]Reward{{ID: 1, ReferrerID: 7, ReferredID: 12, AmountPaise: 5000, Status: StatusClaimed}}, 1, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/referrals/rewards?status=claimed", nil)
	setupRewardRouter(svc, 7).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["total"])
	svc.AssertExpectations(t)
}

func TestListMineRewardsUnauthenticated(t *testing.T) {
	svc := new(mockRewardService)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/referrals/rewards", nil)
	setupRewardRouter(svc, 0).ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	svc.AssertNotCalled(t, "ListForReferrer", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdminListRewardsParsesReferrerID(t *testing.T) {
	svc := new(mockRewardService)
	svc.On("List", mock.Anything, mock.MatchedBy(func(f Filter) bool {
		return f.ReferrerID != nil && *f.ReferrerID == 3 && f.Status == StatusPending
	})).Return([]Reward{}, 0, nil)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin/referrals/rewards?referrer_id=3&status=pending", nil)
	setupRewardRouter(svc, 1).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	svc.AssertExpectations(t)
}

func TestAdminListRewardsRejectsBadReferrerID(t *testing.T) {
	svc := new(mockRewardService)

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/admin/referrals/rewards?referrer_id=abc", nil)
	setupRewardRouter(svc, 1).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "List", mock.Anything, mock.Anything)
}
