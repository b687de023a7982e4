package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"universe/internal/account"
	"universe/internal/attendance"
	"universe/internal/auth"
	"universe/internal/chat"
	"universe/internal/config"
	"universe/internal/httpmiddleware"
	"universe/internal/market"
	"universe/internal/moderation"
	"universe/internal/perks"
	"universe/internal/posts"
	"universe/internal/queue"
	"universe/internal/store"
	"universe/internal/wallet"
)

// api bundles the services the route handlers need.
type api struct {
	cfg        config.App
	accounts   *account.Service
	ledger     *wallet.Ledger
	attendance *attendance.Service
	market     *market.Service
	perks      *perks.Service
	chats      *chat.Service
	posts      *posts.Service
}

func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("http server failed: %v", err)
	}
}

func run(cfg config.App) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		return err
	}

	redisClient := store.NewRedis(cfg.RedisAddr)

	var reviews queue.Queue
	var hub chat.Hub
	if cfg.QueueBackend == "memory" {
		reviews = queue.NewInMemory(64)
		hub = chat.NewInMemoryHub()
	} else {
		reviews = queue.NewRedisQueue(redisClient.Client, store.ReviewQueueKey)
		hub = chat.NewRedisHub(redisClient.Client, store.ChatChannelPrefix)
	}

	classifier := moderation.New(cfg.ModerationURL, cfg.ModerationAPIKey, cfg.ModerationSkip)

	ledger := wallet.NewLedger(wallet.NewRepository(db.Client))
	a := &api{
		cfg:      cfg,
		accounts: account.NewService(account.NewRepository(db.Client), cfg.BcryptCost, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL, cfg.RefreshTTL, uuid.NewString),
		ledger:   ledger,
		attendance: attendance.NewService(attendance.NewRepository(db.Client), ledger,
			cfg.AttendanceCodeTTL, cfg.AttendanceCooldown, cfg.AttendancePoints, uuid.NewString),
		market: market.NewService(market.NewRepository(db.Client), ledger, uuid.NewString),
		perks:  perks.NewService(perks.NewRepository(db.Client), ledger, cfg.TicketTTL, cfg.CreditTTL, uuid.NewString),
		chats:  chat.NewService(chat.NewRepository(db.Client), hub, uuid.NewString),
		posts:  posts.NewService(posts.NewRepository(db.Client), classifier, reviews, cfg.ModerationUnavailable, uuid.NewString),
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	r.Use(corsMiddleware())
	r.Use(securityHeaders())
	r.Use(httpmiddleware.NewLimiter(cfg.RateLimitPerMin, cfg.RateLimitPerMin).GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		redisHealthy := redisClient.Healthy(c.Request.Context())
		dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
		status := http.StatusOK
		if !redisHealthy || !dbHealthy {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
	})

	// Public auth endpoints.
	r.POST("/v1/auth/register", a.register)
	r.POST("/v1/auth/login", a.login)
	r.POST("/v1/auth/refresh", a.refresh)
	r.POST("/v1/auth/logout", a.logout)

	// Everything else requires a session.
	v1 := r.Group("/v1", auth.UserAuth(cfg.JWTSigningKey, cfg.JWTIssuer))

	v1.GET("/me", a.me)
	v1.GET("/wallet", a.walletBalance)
	v1.GET("/wallet/history", a.walletHistory)

	teacher := v1.Group("", auth.RequireRole(auth.RoleTeacher))
	teacher.POST("/attendance/sessions", a.issueSession)
	teacher.GET("/attendance/sessions", a.listSessions)
	teacher.GET("/attendance/sessions/:id/records", a.listSessionRecords)

	student := v1.Group("", auth.RequireRole(auth.RoleStudent))
	student.POST("/attendance/redeem", a.redeemCode)
	student.GET("/attendance/weekly", a.weeklySummary)

	v1.POST("/listings", a.createListing)
	v1.GET("/listings", a.listListings)
	v1.GET("/listings/mine", a.myListings)
	v1.POST("/listings/:id/borrow", a.borrowListing)
	v1.POST("/listings/:id/return", a.returnListing)
	v1.POST("/listings/:id/withdraw", a.withdrawListing)

	v1.POST("/requests", a.createRequest)
	v1.GET("/requests", a.listRequests)
	v1.GET("/requests/mine", a.myRequests)
	v1.POST("/requests/:id/cancel", a.cancelRequest)

	v1.GET("/perks", a.listPerks)
	v1.POST("/perks/:id/redeem", a.redeemPerk)
	v1.GET("/vouchers", a.listVouchers)

	v1.POST("/chats", a.openMarketChat)
	v1.POST("/secure-chats", a.openSecureChat)
	v1.GET("/chats", a.listChats)
	v1.GET("/chats/:id", a.getChat)
	v1.GET("/chats/:id/messages", a.listMessages)
	v1.POST("/chats/:id/messages", a.sendMessage)
	v1.GET("/chats/:id/stream", a.streamMessages)

	v1.POST("/posts", a.createPost)
	v1.GET("/posts", a.listPosts)
	v1.POST("/posts/:id/like", a.likePost)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Starting server on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced shutdown: %v", err)
	}

	log.Println("Server exited")
	return nil
}

// CORS middleware for browser requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}

		c.Header("Access-Control-Allow-Origin", origin)
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept, Authorization")
		c.Header("Access-Control-Allow-Credentials", "true")
		c.Header("Access-Control-Max-Age", "86400")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Security headers middleware.
func securityHeaders() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")

		if gin.Mode() == gin.ReleaseMode {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}

		c.Next()
	}
}
