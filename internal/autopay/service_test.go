package autopay

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saravananbs/genchargephase2/internal/catalog"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/recharge"
	"github.com/saravananbs/genchargephase2/internal/subscription"
	"github.com/saravananbs/genchargephase2/internal/user"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

func TestMain(m *testing.M) {
	logger.Init()

	code := m.Run()
	os.Exit(code)
}

type mockRepo struct{ mock.Mock }

func (m *mockRepo) Create(ctx context.Context, a *Autopay) (*Autopay, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Autopay), args.Error(1)
}

func (m *mockRepo) GetByID(ctx context.Context, id int) (*Autopay, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Autopay), args.Error(1)
}

func (m *mockRepo) Update(ctx context.Context, a *Autopay) (*Autopay, error) {
	args := m.Called(ctx, a)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Autopay), args.Error(1)
}

func (m *mockRepo) Delete(ctx context.Context, id int) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *mockRepo) List(ctx context.Context, f Filter) ([]Autopay, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]Autopay), args.Int(1), args.Error(2)
}

func (m *mockRepo) FindDue(ctx context.Context, now time.Time) ([]Autopay, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]Autopay), args.Error(1)
}

func (m *mockRepo) RecordRun(ctx context.Context, id int, run RunUpdate) error {
	args := m.Called(ctx, id, run)
	return args.Error(0)
}

type mockUsers struct{ mock.Mock }

func (m *mockUsers) Create(ctx context.Context, u *user.User) (*user.User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUsers) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUsers) FindByID(ctx context.Context, id int) (*user.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUsers) FindByPhone(ctx context.Context, phone string) (*user.User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUsers) FindByReferralCode(ctx context.Context, code string) (*user.User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*user.User), args.Error(1)
}

func (m *mockUsers) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *mockUsers) PhoneExists(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

type mockCatalog struct{ mock.Mock }

func (m *mockCatalog) GetPlanByID(ctx context.Context, id int) (*catalog.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Plan), args.Error(1)
}

func (m *mockCatalog) GetActivePlanByID(ctx context.Context, id int) (*catalog.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Plan), args.Error(1)
}

func (m *mockCatalog) ListActivePlans(ctx context.Context, f catalog.PlanFilter) ([]catalog.Plan, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Plan), args.Error(1)
}

func (m *mockCatalog) GetOfferByID(ctx context.Context, id int) (*catalog.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Offer), args.Error(1)
}

func (m *mockCatalog) GetActiveOfferByID(ctx context.Context, id int) (*catalog.Offer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*catalog.Offer), args.Error(1)
}

func (m *mockCatalog) ListActiveOffers(ctx context.Context) ([]catalog.Offer, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]catalog.Offer), args.Error(1)
}

type mockSubscriber struct{ mock.Mock }

func (m *mockSubscriber) Subscribe(ctx context.Context, userID int, source, key string, req recharge.SubscribeRequest) (*recharge.Result, error) {
	args := m.Called(ctx, userID, source, key, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*recharge.Result), args.Error(1)
}

type fixture struct {
	svc        Service
	repo       *mockRepo
	users      *mockUsers
	catalog    *mockCatalog
	subscriber *mockSubscriber
}

func newFixture(_ *testing.T) *fixture {
	f := &fixture{
		repo:       &mockRepo{},
		users:      &mockUsers{},
		catalog:    &mockCatalog{},
		subscriber: &mockSubscriber{},
	}
	f.svc = NewService(f.repo, f.users, f.catalog, f.subscriber, 30)
	return f
}

func owner() *user.User {
	return &user.User{
		ID:          1,
		Name:        "Ravi",
		Email:       "ravi@example.com",
		PhoneNumber: "9876543210",
		Status:      user.StatusActive,
	}
}

func activePlan(id int) *catalog.Plan {
	days := 28
	return &catalog.Plan{
		ID:           id,
		Name:         "Unlimited 28D",
		PricePaise:   29900,
		ValidityDays: &days,
		PlanType:     "prepaid",
		Status:       catalog.StatusActive,
	}
}

func dueEntry(id int, tag string) Autopay {
	return Autopay{
		ID:          id,
		UserID:      1,
		PlanID:      7,
		PhoneNumber: "9876543210",
		Tag:         tag,
		Status:      StatusEnabled,
		NextDueDate: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCreateDefaultsPhoneToOwner(t *testing.T) {
	f := newFixture(t)

	f.users.On("FindByID", mock.Anything, 1).Return(owner(), nil)
	f.catalog.On("GetActivePlanByID", mock.Anything, 7).Return(activePlan(7), nil)
	f.repo.On("Create", mock.Anything, mock.MatchedBy(func(a *Autopay) bool {
		return a.UserID == 1 &&
			a.PhoneNumber == "9876543210" &&
			a.Status == StatusEnabled &&
			a.Tag == TagRegular
	})).Return(&Autopay{ID: 5, UserID: 1, PlanID: 7}, nil)

	entry, err := f.svc.Create(context.Background(), 1, CreateRequest{
		PlanID:      7,
		Tag:         TagRegular,
		NextDueDate: time.Now().AddDate(0, 0, 1),
	})
	require.NoError(t, err)
	assert.Equal(t, 5, entry.ID)
	f.repo.AssertExpectations(t)
}

func TestCreateRejectsUnknownPlan(t *testing.T) {
	f := newFixture(t)

	f.users.On("FindByID", mock.Anything, 1).Return(owner(), nil)
	f.catalog.On("GetActivePlanByID", mock.Anything, 99).Return(nil, catalog.ErrPlanNotFound)

	_, err := f.svc.Create(context.Background(), 1, CreateRequest{
		PlanID:      99,
		Tag:         TagOnetime,
		NextDueDate: time.Now(),
	})
	require.ErrorIs(t, err, catalog.ErrPlanNotFound)
	f.repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestGetHidesForeignEntry(t *testing.T) {
	f := newFixture(t)

	someoneElses := dueEntry(5, TagRegular)
	someoneElses.UserID = 2
	f.repo.On("GetByID", mock.Anything, 5).Return(&someoneElses, nil)

	_, err := f.svc.Get(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrAutopayNotFound)
}

func TestUpdateAppliesOnlyProvidedFields(t *testing.T) {
	f := newFixture(t)

	existing := dueEntry(5, TagRegular)
	f.repo.On("GetByID", mock.Anything, 5).Return(&existing, nil)

	disabled := StatusDisabled
	f.repo.On("Update", mock.Anything, mock.MatchedBy(func(a *Autopay) bool {
		return a.ID == 5 &&
			a.Status == StatusDisabled &&
			a.Tag == TagRegular && // untouched
			a.PlanID == 7 // untouched
	})).Return(&existing, nil)

	_, err := f.svc.Update(context.Background(), 1, 5, UpdateRequest{Status: &disabled})
	require.NoError(t, err)
	f.repo.AssertExpectations(t)
	f.catalog.AssertNotCalled(t, "GetActivePlanByID", mock.Anything, mock.Anything)
}

func TestDeleteChecksOwnership(t *testing.T) {
	f := newFixture(t)

	foreign := dueEntry(5, TagRegular)
	foreign.UserID = 8
	f.repo.On("GetByID", mock.Anything, 5).Return(&foreign, nil)

	err := f.svc.Delete(context.Background(), 1, 5)
	require.ErrorIs(t, err, ErrAutopayNotFound)
	f.repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}

func TestProcessDueOnetimeDisablesAfterCharge(t *testing.T) {
	f := newFixture(t)

	entry := dueEntry(5, TagOnetime)
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{entry}, nil)

	wantKey := "autopay:5:2026-03-01T00:00:00Z"
	txn := &wallet.Transaction{ID: 42}
	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, wantKey, mock.MatchedBy(func(req recharge.SubscribeRequest) bool {
		return req.PlanID == 7 && req.PhoneNumber == "9876543210" && req.PaymentMethod == wallet.MethodWallet
	})).Return(&recharge.Result{Transaction: txn}, nil)

	f.repo.On("RecordRun", mock.Anything, 5, mock.MatchedBy(func(run RunUpdate) bool {
		return run.Status == RunSuccess && run.Disable && run.NextDue == nil
	})).Return(nil)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	require.Len(t, report.Results, 1)
	assert.Equal(t, RunSuccess, report.Results[0].Status)
	require.NotNil(t, report.Results[0].TxnID)
	assert.Equal(t, int64(42), *report.Results[0].TxnID)
	f.repo.AssertExpectations(t)
	f.subscriber.AssertExpectations(t)
}

func TestProcessDueRegularAdvancesByGrantedValidity(t *testing.T) {
	f := newFixture(t)

	entry := dueEntry(5, TagRegular)
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{entry}, nil)

	from := time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)
	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(&recharge.Result{
			Transaction: &wallet.Transaction{ID: 42},
			ActivePlan:  &subscription.ActivePlan{ValidFrom: from, ValidTo: from.AddDate(0, 0, 28)},
		}, nil)

	wantNext := entry.NextDueDate.AddDate(0, 0, 28)
	f.repo.On("RecordRun", mock.Anything, 5, mock.MatchedBy(func(run RunUpdate) bool {
		return run.Status == RunSuccess && !run.Disable &&
			run.NextDue != nil && run.NextDue.Equal(wantNext)
	})).Return(nil)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
	f.repo.AssertExpectations(t)
}

func TestProcessDueReplayUsesCatalogValidity(t *testing.T) {
	f := newFixture(t)

	entry := dueEntry(5, TagRegular)
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{entry}, nil)

	// A replayed cycle carries no activation, so validity comes from
	// the catalog.
	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(&recharge.Result{Transaction: &wallet.Transaction{ID: 42}, Replayed: true}, nil)
	f.catalog.On("GetPlanByID", mock.Anything, 7).Return(activePlan(7), nil)

	wantNext := entry.NextDueDate.AddDate(0, 0, 28)
	f.repo.On("RecordRun", mock.Anything, 5, mock.MatchedBy(func(run RunUpdate) bool {
		return run.Status == RunSuccess && run.NextDue != nil && run.NextDue.Equal(wantNext)
	})).Return(nil)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)
}

func TestProcessDueFailureLeavesDueDate(t *testing.T) {
	f := newFixture(t)

	entry := dueEntry(5, TagRegular)
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{entry}, nil)

	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(nil, recharge.ErrInsufficientBalance)

	f.repo.On("RecordRun", mock.Anything, 5, mock.MatchedBy(func(run RunUpdate) bool {
		return run.Status == RunFailure && run.NextDue == nil && !run.Disable
	})).Return(nil)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	require.Len(t, report.Results, 1)
	assert.Contains(t, report.Results[0].Error, "insufficient")
	f.repo.AssertExpectations(t)
}

func TestProcessDueInFlightLeavesEntryUntouched(t *testing.T) {
	f := newFixture(t)

	entry := dueEntry(5, TagRegular)
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{entry}, nil)

	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(nil, recharge.ErrDuplicateRequest)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, report.Failed)
	f.repo.AssertNotCalled(t, "RecordRun", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessDueContinuesPastFailures(t *testing.T) {
	f := newFixture(t)

	broke := dueEntry(5, TagOnetime)
	funded := dueEntry(6, TagOnetime)
	funded.UserID = 2
	f.repo.On("FindDue", mock.Anything, mock.Anything).Return([]Autopay{broke, funded}, nil)

	f.subscriber.On("Subscribe", mock.Anything, 1, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(nil, recharge.ErrInsufficientBalance)
	f.subscriber.On("Subscribe", mock.Anything, 2, wallet.SourceAutopay, mock.Anything, mock.Anything).
		Return(&recharge.Result{Transaction: &wallet.Transaction{ID: 43}}, nil)

	f.repo.On("RecordRun", mock.Anything, 5, mock.Anything).Return(nil)
	f.repo.On("RecordRun", mock.Anything, 6, mock.Anything).Return(nil)

	report, err := f.svc.ProcessDue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Processed)
	assert.Equal(t, 1, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
}

func TestListForUserScopesToCaller(t *testing.T) {
	f := newFixture(t)

	f.repo.On("List", mock.Anything, mock.MatchedBy(func(flt Filter) bool {
		return flt.UserID != nil && *flt.UserID == 1
	})).Return([]Autopay{dueEntry(5, TagRegular)}, 1, nil)

	entries, total, err := f.svc.ListForUser(context.Background(), 1, Filter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, entries, 1)
}
