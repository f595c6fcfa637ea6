package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tandarun/coach/adapters/websocket"
	"github.com/tandarun/coach/config"
	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/utils/log"
)

const (
	jwtExpiry = 24 * time.Hour

	maxInsightListLimit = 100
)

type Handler struct {
	store     domain.InsightStore
	bus       domain.EventBus
	hasher    domain.Hasher
	wsHub     *websocket.Hub
	jwtSecret []byte
	apiKey    string
	apiSecret string
}

type JWTClaims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

func NewHandler(store domain.InsightStore, bus domain.EventBus, hasher domain.Hasher, wsHub *websocket.Hub, cfg *config.Config) *Handler {
	return &Handler{
		store:     store,
		bus:       bus,
		hasher:    hasher,
		wsHub:     wsHub,
		jwtSecret: []byte(cfg.JWTSecret),
		apiKey:    cfg.APIKey,
		apiSecret: cfg.APISecret,
	}
}

// HealthCheck reports liveness and the number of live chat connections.
func (h *Handler) HealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":            "ok",
		"connected_clients": h.wsHub.ClientCount(),
	})
}

type tokenRequest struct {
	UserID string `json:"user_id"`
}

// GenerateJWT creates a JWT token for a linked account. The identity
// handshake itself (OAuth with the fitness provider) happens upstream;
// this endpoint only mints the session token.
func (h *Handler) GenerateJWT(c echo.Context) error {
	apiKey := c.Request().Header.Get("X-API-Key")
	apiSecret := c.Request().Header.Get("X-API-Secret")

	if h.apiKey == "" || apiKey != h.apiKey || apiSecret != h.apiSecret {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid credentials")
	}

	var req tokenRequest
	if err := c.Bind(&req); err != nil || req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id is required")
	}

	claims := &JWTClaims{
		UserID: req.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(jwtExpiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
			Issuer:    "tandarun-coach",
			Subject:   "chat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(h.jwtSecret)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Error signing JWT", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}

	return c.JSON(http.StatusOK, map[string]string{
		"token": tokenString,
		"type":  "Bearer",
	})
}

// JWTMiddleware requires a valid bearer token.
func (h *Handler) JWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := h.parseToken(c)
		if err != nil {
			return echo.NewHTTPError(http.StatusUnauthorized, "Invalid token")
		}

		c.Set("user_id", claims.UserID)
		c.Set("access_level", domain.AccessAuthenticated)
		return next(c)
	}
}

// OptionalJWTMiddleware classifies the connection instead of rejecting
// it: a valid token makes it authenticated, anything else anonymous.
// The chat handler short-circuits anonymous users itself.
func (h *Handler) OptionalJWTMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, err := h.parseToken(c)
		if err != nil {
			c.Set("user_id", "")
			c.Set("access_level", domain.AccessAnonymous)
			return next(c)
		}

		c.Set("user_id", claims.UserID)
		c.Set("access_level", domain.AccessAuthenticated)
		return next(c)
	}
}

// parseToken reads the bearer token from the Authorization header or,
// for browser WebSocket handshakes that cannot set headers, the "token"
// query parameter.
func (h *Handler) parseToken(c echo.Context) (*JWTClaims, error) {
	tokenString := ""
	if authHeader := c.Request().Header.Get("Authorization"); authHeader != "" {
		tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			return nil, fmt.Errorf("invalid authorization format")
		}
	} else if q := c.QueryParam("token"); q != "" {
		tokenString = q
	} else {
		return nil, fmt.Errorf("missing token")
	}

	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return h.jwtSecret, nil
	})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid || claims.UserID == "" {
		return nil, fmt.Errorf("invalid token claims")
	}
	return claims, nil
}

type createInsightRequest struct {
	SourceID string          `json:"source_id"`
	Data     json.RawMessage `json:"data"`
}

// CreateInsight ingests one mined coaching insight. The insight id is
// derived from the payload so re-running the miner upserts instead of
// duplicating.
func (h *Handler) CreateInsight(c echo.Context) error {
	var req createInsightRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid payload")
	}
	if req.SourceID == "" || len(req.Data) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "source_id and data are required")
	}

	insight := domain.TrainingInsight{
		InsightID: h.hasher.Hash(req.Data),
		SourceID:  req.SourceID,
		Data:      req.Data,
	}

	stored, err := h.store.Add(c.Request().Context(), insight)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Storing insight", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to store insight")
	}

	h.publishInsightsUpdated(c, stored)

	return c.JSON(http.StatusCreated, stored)
}

// GetInsight returns one insight by id.
func (h *Handler) GetInsight(c echo.Context) error {
	insight, err := h.store.GetByID(c.Request().Context(), c.Param("id"))
	if errors.Is(err, domain.ErrInsightNotFound) {
		return echo.NewHTTPError(http.StatusNotFound, "Insight not found")
	}
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Fetching insight", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to fetch insight")
	}
	return c.JSON(http.StatusOK, insight)
}

// ListInsights returns the most recently updated insights.
func (h *Handler) ListInsights(c echo.Context) error {
	limit := 20
	if raw := c.QueryParam("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxInsightListLimit {
			return echo.NewHTTPError(http.StatusBadRequest, "limit must be between 1 and 100")
		}
		limit = parsed
	}

	insights, err := h.store.ListRecent(c.Request().Context(), limit)
	if err != nil {
		log.WithCtx(c.Request().Context()).Error("Listing insights", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to list insights")
	}
	if insights == nil {
		insights = []domain.TrainingInsight{}
	}

	return c.JSON(http.StatusOK, insights)
}

// publishInsightsUpdated is best effort: a full bus never fails the
// ingestion request.
func (h *Handler) publishInsightsUpdated(c echo.Context, insight domain.TrainingInsight) {
	payload, err := json.Marshal(domain.InsightsUpdatedEvent{
		InsightID: insight.InsightID,
		SourceID:  insight.SourceID,
		Timestamp: time.Now(),
	})
	if err != nil {
		return
	}
	if err := h.bus.Publish(c.Request().Context(), websocket.InsightsUpdatedTopic, "", payload); err != nil {
		log.WithCtx(c.Request().Context()).Warn("Publishing insights event", zap.Error(err))
	}
}
