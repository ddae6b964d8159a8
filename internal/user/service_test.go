package user

import (
	"context"
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

// MockRepository is a mock implementation of Repository
type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, u *User) (*User, error) {
	args := m.Called(ctx, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByEmail(ctx context.Context, email string) (*User, error) {
	args := m.Called(ctx, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByID(ctx context.Context, id int) (*User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByPhone(ctx context.Context, phone string) (*User, error) {
	args := m.Called(ctx, phone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) FindByReferralCode(ctx context.Context, code string) (*User, error) {
	args := m.Called(ctx, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*User), args.Error(1)
}

func (m *MockRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	args := m.Called(ctx, email)
	return args.Bool(0), args.Error(1)
}

func (m *MockRepository) PhoneExists(ctx context.Context, phone string) (bool, error) {
	args := m.Called(ctx, phone)
	return args.Bool(0), args.Error(1)
}

func testIssuer() *auth.TokenIssuer {
	ti, err := auth.NewTokenIssuer("test-secret", 0, 0)
	if err != nil {
		panic(err)
	}
	return ti
}

func TestService_Register(t *testing.T) {
	refCode := "GCAAAA1111"

	tests := []struct {
		name          string
		req           RegisterRequest
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful registration",
			req: RegisterRequest{
				Name:        "Test User",
				Email:       "test@example.com",
				Password:    "password123",
				PhoneNumber: "9876543210",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "test@example.com").Return(false, nil)
				m.On("PhoneExists", mock.Anything, "9876543210").Return(false, nil)
				m.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
					return u.Email == "test@example.com" &&
						u.Role == RoleUser &&
						u.UserType == TypePrepaid &&
						u.Status == StatusActive &&
						u.ReferralCode != ""
				})).Return(&User{
					ID:           1,
					Name:         "Test User",
					Email:        "test@example.com",
					Role:         RoleUser,
					PhoneNumber:  "9876543210",
					UserType:     TypePrepaid,
					Status:       StatusActive,
					ReferralCode: "GCBBBB2222",
				}, nil)
			},
		},
		{
			name: "email already exists",
			req: RegisterRequest{
				Name:        "Test User",
				Email:       "taken@example.com",
				Password:    "password123",
				PhoneNumber: "9876543210",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "taken@example.com").Return(true, nil)
			},
			expectedError: ErrEmailExists,
		},
		{
			name: "phone already exists",
			req: RegisterRequest{
				Name:        "Test User",
				Email:       "test@example.com",
				Password:    "password123",
				PhoneNumber: "9999999999",
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "test@example.com").Return(false, nil)
				m.On("PhoneExists", mock.Anything, "9999999999").Return(true, nil)
			},
			expectedError: ErrPhoneExists,
		},
		{
			name: "unknown referee code rejected",
			req: RegisterRequest{
				Name:        "Test User",
				Email:       "test@example.com",
				Password:    "password123",
				PhoneNumber: "9876543210",
				RefereeCode: &refCode,
			},
			setupMock: func(m *MockRepository) {
				m.On("EmailExists", mock.Anything, "test@example.com").Return(false, nil)
				m.On("PhoneExists", mock.Anything, "9876543210").Return(false, nil)
				m.On("FindByReferralCode", mock.Anything, refCode).Return(nil, ErrUserNotFound)
			},
			expectedError: ErrInvalidRefereeCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			svc := NewService(mockRepo, nil, testIssuer())
			u, access, refresh, err := svc.Register(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
				assert.Nil(t, u)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, u)
				assert.NotEmpty(t, access)
				assert.NotEmpty(t, refresh)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestService_RegisterWithRefereeCode(t *testing.T) {
	refCode := "GCAAAA1111"

	mockRepo := new(MockRepository)
	mockRepo.On("EmailExists", mock.Anything, "referred@example.com").Return(false, nil)
	mockRepo.On("PhoneExists", mock.Anything, "9876543211").Return(false, nil)
	mockRepo.On("FindByReferralCode", mock.Anything, refCode).Return(&User{ID: 7, ReferralCode: refCode}, nil)
	mockRepo.On("Create", mock.Anything, mock.MatchedBy(func(u *User) bool {
		return u.RefereeCode != nil && *u.RefereeCode == refCode
	})).Return(&User{ID: 2, Email: "referred@example.com", Role: RoleUser, RefereeCode: &refCode}, nil)

	svc := NewService(mockRepo, nil, testIssuer())
	u, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name:        "Referred",
		Email:       "referred@example.com",
		Password:    "password123",
		PhoneNumber: "9876543211",
		RefereeCode: &refCode,
	})

	assert.NoError(t, err)
	assert.NotNil(t, u.RefereeCode)
	mockRepo.AssertExpectations(t)
}

func TestService_Login(t *testing.T) {
	hash, _ := auth.HashPassword("password123")

	tests := []struct {
		name          string
		req           LoginRequest
		setupMock     func(*MockRepository)
		expectedError error
	}{
		{
			name: "successful login",
			req:  LoginRequest{Email: "test@example.com", Password: "password123"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&User{
					ID:           1,
					Email:        "test@example.com",
					PasswordHash: hash,
					Role:         RoleUser,
				}, nil)
			},
		},
		{
			name: "wrong password",
			req:  LoginRequest{Email: "test@example.com", Password: "wrong"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "test@example.com").Return(&User{
					ID:           1,
					Email:        "test@example.com",
					PasswordHash: hash,
					Role:         RoleUser,
				}, nil)
			},
			expectedError: ErrInvalidCredentials,
		},
		{
			name: "unknown email",
			req:  LoginRequest{Email: "missing@example.com", Password: "password123"},
			setupMock: func(m *MockRepository) {
				m.On("FindByEmail", mock.Anything, "missing@example.com").Return(nil, errors.New("sql: no rows"))
			},
			expectedError: ErrInvalidCredentials,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockRepository)
			tt.setupMock(mockRepo)

			svc := NewService(mockRepo, nil, testIssuer())
			_, access, _, err := svc.Login(context.Background(), tt.req)

			if tt.expectedError != nil {
				assert.ErrorIs(t, err, tt.expectedError)
			} else {
				assert.NoError(t, err)
				assert.NotEmpty(t, access)
			}

			mockRepo.AssertExpectations(t)
		})
	}
}

func TestNewReferralCode(t *testing.T) {
	a := NewReferralCode()
	b := NewReferralCode()

	assert.Len(t, a, 10)
	assert.True(t, len(a) > 2 && a[:2] == "GC")
	assert.NotEqual(t, a, b)
}

type mockWallets struct{ mock.Mock }

func (m *mockWallets) GetOrCreateWallet(ctx context.Context, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWallets) GetWalletByUserID(ctx context.Context, q sqlx.ExtContext, userID int) (*wallet.Wallet, error) {
	args := m.Called(ctx, q, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWallets) CompareAndSwapBalance(ctx context.Context, q sqlx.ExtContext, walletID int, newBalancePaise int64, oldVersion int) error {
	args := m.Called(ctx, q, walletID, newBalancePaise, oldVersion)
	return args.Error(0)
}

func (m *mockWallets) ApplyDelta(ctx context.Context, q sqlx.ExtContext, userID int, deltaPaise int64, maxRetries int) (*wallet.Wallet, error) {
	args := m.Called(ctx, q, userID, deltaPaise, maxRetries)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Wallet), args.Error(1)
}

func (m *mockWallets) CreateTransaction(ctx context.Context, q sqlx.ExtContext, t *wallet.Transaction) (*wallet.Transaction, error) {
	args := m.Called(ctx, q, t)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *mockWallets) MarkTransactionSuccess(ctx context.Context, q sqlx.ExtContext, id int64, paymentTxnID *string, balanceAfter *int64) error {
	args := m.Called(ctx, q, id, paymentTxnID, balanceAfter)
	return args.Error(0)
}

func (m *mockWallets) MarkTransactionFailed(ctx context.Context, q sqlx.ExtContext, id int64, reason string) error {
	args := m.Called(ctx, q, id, reason)
	return args.Error(0)
}

func (m *mockWallets) GetTransactionByID(ctx context.Context, id int64) (*wallet.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.Transaction), args.Error(1)
}

func (m *mockWallets) ListTransactions(ctx context.Context, f wallet.TxnFilter) ([]wallet.Transaction, int, error) {
	args := m.Called(ctx, f)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]wallet.Transaction), args.Int(1), args.Error(2)
}

func (m *mockWallets) CountSuccessByService(ctx context.Context, userID int, serviceType string) (int, error) {
	args := m.Called(ctx, userID, serviceType)
	return args.Int(0), args.Error(1)
}

func (m *mockWallets) Audit(ctx context.Context, userID int) (*wallet.AuditReport, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*wallet.AuditReport), args.Error(1)
}

func TestService_RegisterProvisionsWallet(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("EmailExists", mock.Anything, "new@example.com").Return(false, nil)
	mockRepo.On("PhoneExists", mock.Anything, "9876500001").Return(false, nil)
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Return(&User{ID: 42, Email: "new@example.com", Role: RoleUser}, nil)

	wallets := new(mockWallets)
	wallets.On("GetOrCreateWallet", mock.Anything, 42).
		Return(&wallet.Wallet{ID: 1, UserID: 42}, nil)

	svc := NewService(mockRepo, wallets, testIssuer())
	u, _, _, err := svc.Register(context.Background(), RegisterRequest{
		Name:        "New",
		Email:       "new@example.com",
		Password:    "password123",
		PhoneNumber: "9876500001",
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, u.ID)
	wallets.AssertExpectations(t)
}

func TestService_RegisterSurvivesWalletProvisionError(t *testing.T) {
	mockRepo := new(MockRepository)
	mockRepo.On("EmailExists", mock.Anything, "flaky@example.com").Return(false, nil)
	mockRepo.On("PhoneExists", mock.Anything, "9876500002").Return(false, nil)
	mockRepo.On("Create", mock.Anything, mock.Anything).
		Return(&User{ID: 43, Email: "flaky@example.com", Role: RoleUser}, nil)

	wallets := new(mockWallets)
	wallets.On("GetOrCreateWallet", mock.Anything, 43).
		Return(nil, errors.New("db down"))

	u, access, _, err := NewService(mockRepo, wallets, testIssuer()).
		Register(context.Background(), RegisterRequest{
			Name:        "Flaky",
			Email:       "flaky@example.com",
			Password:    "password123",
			PhoneNumber: "9876500002",
		})

	assert.NoError(t, err)
	assert.NotNil(t, u)
	assert.NotEmpty(t, access)
}

func TestService_RefreshToken(t *testing.T) {
	ti := testIssuer()
	_, refresh, err := ti.IssuePair(5, "active@example.com", RoleUser)
	require.NoError(t, err)

	mockRepo := new(MockRepository)
	mockRepo.On("FindByID", mock.Anything, 5).
		Return(&User{ID: 5, Email: "active@example.com", Role: RoleUser, Status: StatusActive}, nil)

	access, u, err := NewService(mockRepo, nil, ti).RefreshToken(context.Background(), refresh)

	assert.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.Equal(t, 5, u.ID)
}

func TestService_RefreshTokenRejectsAccessToken(t *testing.T) {
	ti := testIssuer()
	access, err := ti.IssueAccess(5, "active@example.com", RoleUser)
	require.NoError(t, err)

	mockRepo := new(MockRepository)

	_, _, err = NewService(mockRepo, nil, ti).RefreshToken(context.Background(), access)

	assert.ErrorIs(t, err, auth.ErrWrongTokenUse)
	mockRepo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}

func TestService_RefreshTokenBlockedAccount(t *testing.T) {
	ti := testIssuer()
	_, refresh, err := ti.IssuePair(6, "blocked@example.com", RoleUser)
	require.NoError(t, err)

	mockRepo := new(MockRepository)
	mockRepo.On("FindByID", mock.Anything, 6).
		Return(&User{ID: 6, Email: "blocked@example.com", Role: RoleUser, Status: StatusBlocked}, nil)

	_, _, err = NewService(mockRepo, nil, ti).RefreshToken(context.Background(), refresh)

	assert.ErrorIs(t, err, ErrInvalidCredentials)
}
