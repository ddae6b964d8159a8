package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/saravananbs/genchargephase2/internal/auth"
	"github.com/saravananbs/genchargephase2/internal/autopay"
	"github.com/saravananbs/genchargephase2/internal/catalog"
	"github.com/saravananbs/genchargephase2/internal/config"
	"github.com/saravananbs/genchargephase2/internal/idempotency"
	"github.com/saravananbs/genchargephase2/internal/logger"
	"github.com/saravananbs/genchargephase2/internal/notify"
	"github.com/saravananbs/genchargephase2/internal/payment"
	"github.com/saravananbs/genchargephase2/internal/recharge"
	"github.com/saravananbs/genchargephase2/internal/referral"
	"github.com/saravananbs/genchargephase2/internal/subscription"
	"github.com/saravananbs/genchargephase2/internal/user"
	"github.com/saravananbs/genchargephase2/internal/wallet"
)

type Server struct {
	router   *gin.Engine
	http     *http.Server
	db       *sqlx.DB
	config   *config.Config
	notifier *notify.Service

	subscriptions subscription.Service
	autopays      autopay.Service
}

func New(db *sqlx.DB, rdb *redis.Client, cfg *config.Config, notifier *notify.Service) *Server {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())
	router.Use(RequestLoggingMiddleware())
	router.Use(MetricsMiddleware())
	router.Use(RateLimitMiddleware(cfg.RateLimitRPS, cfg.RateLimitBurst))

	issuer, err := auth.NewTokenIssuer(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	if err != nil {
		logger.Fatalf("Failed to build token issuer: %v", err)
	}

	userRepo := user.NewRepository(db)
	walletRepo := wallet.NewRepository(db)
	catalogRepo := catalog.NewRepository(db)
	planRepo := subscription.NewRepository(db)
	autopayRepo := autopay.NewRepository(db)
	referralRepo := referral.NewRepository(db)

	guard := idempotency.NewGuard(db, rdb, cfg.IdempotencyTTL)
	gateway := payment.NewSandboxGateway(cfg.GatewayLatency)

	referralService := referral.NewService(db, referralRepo, userRepo, walletRepo, notifier, referral.Policy{
		RewardPaise:             cfg.ReferralRewardPaise,
		RequireReferrerRecharge: cfg.ReferralRequireReferrerRecharge,
		WalletMaxRetries:        cfg.WalletMaxRetries,
	})
	rechargeService := recharge.NewService(db, recharge.Options{
		GatewayTimeout:   cfg.GatewayTimeout,
		WalletMaxRetries: cfg.WalletMaxRetries,
		PlanValidityDays: cfg.PlanValidityDays,
	}, userRepo, walletRepo, catalogRepo, planRepo, guard, gateway, notifier, referralService)
	subscriptionService := subscription.NewService(planRepo)
	autopayService := autopay.NewService(autopayRepo, userRepo, catalogRepo, rechargeService, cfg.PlanValidityDays)
	userService := user.NewService(userRepo, walletRepo, issuer)

	userHandler := user.NewHandler(userService)
	walletHandler := wallet.NewHandler(walletRepo)
	catalogHandler := catalog.NewHandler(catalogRepo)
	rechargeHandler := recharge.NewHandler(rechargeService)
	subscriptionHandler := subscription.NewHandler(subscriptionService)
	autopayHandler := autopay.NewHandler(autopayService)
	referralHandler := referral.NewHandler(referralService)

	public := router.Group("/api/v1/auth")
	{
		public.POST("/register", userHandler.Register)
		public.POST("/login", userHandler.Login)
		public.POST("/refresh", userHandler.RefreshToken)
	}

	authMiddleware := auth.Middleware(issuer)
	protected := router.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/auth/me", userHandler.GetMe)

		protected.GET("/wallet", walletHandler.GetBalance)
		protected.POST("/wallet/topup", rechargeHandler.TopUp)
		protected.GET("/wallet/transactions", walletHandler.ListTransactions)

		protected.GET("/plans", catalogHandler.ListPlans)
		protected.GET("/plans/:planID", catalogHandler.GetPlan)
		protected.GET("/offers", catalogHandler.ListOffers)

		protected.POST("/recharges", rechargeHandler.Subscribe)
		protected.GET("/active-plans", subscriptionHandler.ListMine)

		protected.POST("/autopays", autopayHandler.Create)
		protected.GET("/autopays", autopayHandler.ListMine)
		protected.GET("/autopays/:id", autopayHandler.Get)
		protected.PATCH("/autopays/:id", autopayHandler.Update)
		protected.DELETE("/autopays/:id", autopayHandler.Delete)

		protected.GET("/referrals/rewards", referralHandler.ListMine)
	}

	admin := router.Group("/api/v1/admin")
	admin.Use(authMiddleware, auth.RequireRole("admin"))
	{
		admin.GET("/transactions", walletHandler.AdminListTransactions)
		admin.GET("/wallets/:userID/audit", walletHandler.AuditWallet)

		admin.GET("/active-plans", subscriptionHandler.AdminList)
		admin.POST("/active-plans/sweep", subscriptionHandler.Sweep)

		admin.GET("/autopays", autopayHandler.AdminList)
		admin.POST("/autopays/run", autopayHandler.Run)

		admin.GET("/referrals/rewards", referralHandler.AdminList)
		admin.POST("/notifications/test", TestNotification(notifier))
	}

	router.GET("/health", Health(db))
	router.GET("/metrics", Metrics())
	SetupSwagger(router, cfg.SwaggerEnabled)

	return &Server{
		router:        router,
		db:            db,
		config:        cfg,
		notifier:      notifier,
		subscriptions: subscriptionService,
		autopays:      autopayService,
	}
}

// StartWorkers launches the background loops: the notification queue
// consumer, the active-plan sweeper and the autopay scheduler. They
// all stop when ctx is cancelled.
func (s *Server) StartWorkers(ctx context.Context) {
	go s.notifier.Start(ctx)
	go subscription.NewSweeper(s.subscriptions, s.config.SweepInterval).Start(ctx)
	go autopay.NewScheduler(s.autopays, s.config.AutopayInterval).Start(ctx)
	go s.watchQueueDepth(ctx)
}

func (s *Server) watchQueueDepth(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.notifier.QueueLength(ctx)
		}
	}
}

func (s *Server) Start(port string) error {
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.router,
	}
	return s.http.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.http == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, Idempotency-Key")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE, PATCH")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
