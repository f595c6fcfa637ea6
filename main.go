package main

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/subosito/gotenv"
	"golang.org/x/time/rate"

	"github.com/tandarun/coach/adapters/cache"
	"github.com/tandarun/coach/adapters/eventbus"
	"github.com/tandarun/coach/adapters/hasher"
	"github.com/tandarun/coach/adapters/http"
	"github.com/tandarun/coach/adapters/insights"
	"github.com/tandarun/coach/adapters/llm"
	"github.com/tandarun/coach/adapters/recommend"
	"github.com/tandarun/coach/adapters/render"
	"github.com/tandarun/coach/adapters/websocket"
	"github.com/tandarun/coach/config"
	"github.com/tandarun/coach/usecase"
)

func main() {
	gotenv.Load()
	cfg := config.Load()
	ctx := context.Background()

	// Storage
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	sharedCache := cache.NewRedisCache(rdb)

	pool, err := pgxpool.New(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatalf("connecting to postgres: %v", err)
	}
	defer pool.Close()

	insightStore := insights.NewPGStore(pool)
	if err := insightStore.CreateSchema(ctx); err != nil {
		log.Fatalf("preparing insight schema: %v", err)
	}

	// Completion client
	sha := hasher.NewSHA256()
	ledger := llm.NewBudgetLedger(cfg.SpendCapUSD, cfg.CostPerRequestUSD)
	completion, err := llm.NewGeminiCompletion(ctx, llm.Config{
		Model:        cfg.Model,
		CacheEnabled: cfg.CacheEnabled,
		CacheTTL:     cfg.CacheTTL,
	}, ledger, sharedCache, sha)
	if err != nil {
		log.Fatalf("creating completion client: %v", err)
	}

	// Chat core
	renderer, err := render.NewHTMXRenderer()
	if err != nil {
		log.Fatalf("loading chat templates: %v", err)
	}
	seeds := recommend.NewProvider(completion, insightStore, sharedCache, cfg.SeedTTL)
	svc := usecase.NewChatService(completion, seeds, renderer)

	bus := eventbus.NewChannelEventBus()
	defer bus.Close()

	wsServer := websocket.NewServer(svc, renderer, bus)
	apiHandler := http.NewHandler(insightStore, bus, sha, wsServer.Hub(), cfg)

	e := echo.New()

	// Security middleware
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.Secure())
	e.Use(middleware.RateLimiter(middleware.NewRateLimiterMemoryStore(rate.Limit(cfg.RateLimitPerSecond))))
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins: []string{"*"}, // In production, specify exact origins
		AllowMethods: []string{echo.GET, echo.POST, echo.OPTIONS},
		AllowHeaders: []string{
			echo.HeaderOrigin,
			echo.HeaderContentType,
			echo.HeaderAccept,
			echo.HeaderAuthorization,
			"X-API-Key",
			"X-API-Secret",
		},
		AllowCredentials: true,
		MaxAge:           86400,
	}))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))

	// Chat WebSocket: anonymous connections allowed, classified by the
	// lenient middleware.
	wsGroup := e.Group("/ws")
	wsGroup.Use(apiHandler.OptionalJWTMiddleware)
	wsGroup.GET("", wsServer.Handler)

	// HTTP API routes
	api := e.Group("/api/v1")
	api.GET("/health", apiHandler.HealthCheck)
	api.POST("/auth/token", apiHandler.GenerateJWT)

	insightsGroup := api.Group("/insights")
	insightsGroup.Use(apiHandler.JWTMiddleware)
	insightsGroup.POST("", apiHandler.CreateInsight)
	insightsGroup.GET("", apiHandler.ListInsights)
	insightsGroup.GET("/:id", apiHandler.GetInsight)

	log.Printf("Starting server on :%d", cfg.HTTPPort)
	log.Fatal(e.Start(fmt.Sprintf(":%d", cfg.HTTPPort)))
}
