package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/tandarun/coach/adapters/eventbus"
	"github.com/tandarun/coach/adapters/hasher"
	"github.com/tandarun/coach/adapters/websocket"
	"github.com/tandarun/coach/config"
	"github.com/tandarun/coach/domain"
)

type memStore struct {
	insights map[string]domain.TrainingInsight
}

func newMemStore() *memStore {
	return &memStore{insights: make(map[string]domain.TrainingInsight)}
}

func (s *memStore) CreateSchema(ctx context.Context) error { return nil }

func (s *memStore) Add(ctx context.Context, insight domain.TrainingInsight) (domain.TrainingInsight, error) {
	insight.CreatedAt = time.Now()
	insight.UpdatedAt = insight.CreatedAt
	s.insights[insight.InsightID] = insight
	return insight, nil
}

func (s *memStore) GetByID(ctx context.Context, insightID string) (domain.TrainingInsight, error) {
	insight, ok := s.insights[insightID]
	if !ok {
		return domain.TrainingInsight{}, domain.ErrInsightNotFound
	}
	return insight, nil
}

func (s *memStore) ListRecent(ctx context.Context, limit int) ([]domain.TrainingInsight, error) {
	out := make([]domain.TrainingInsight, 0, len(s.insights))
	for _, insight := range s.insights {
		out = append(out, insight)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newTestHandler(t *testing.T) (*Handler, *memStore, domain.EventBus) {
	t.Helper()

	store := newMemStore()
	bus := eventbus.NewChannelEventBus()
	t.Cleanup(func() { bus.Close() })

	cfg := &config.Config{
		JWTSecret: "test-secret",
		APIKey:    "test-key",
		APISecret: "test-secret-value",
	}
	return NewHandler(store, bus, hasher.NewSHA256(), websocket.NewHub(), cfg), store, bus
}

func doRequest(h echo.HandlerFunc, req *http.Request, pathParams map[string]string) (*httptest.ResponseRecorder, error) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	for name, value := range pathParams {
		c.SetParamNames(name)
		c.SetParamValues(value)
	}
	err := h(c)
	return rec, err
}

func issueToken(t *testing.T, h *Handler, userID string) string {
	t.Helper()

	body := strings.NewReader(`{"user_id": "` + userID + `"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", body)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-API-Key", "test-key")
	req.Header.Set("X-API-Secret", "test-secret-value")

	rec, err := doRequest(h.GenerateJWT, req, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["token"])
	return resp["token"]
}

func TestGenerateJWTRejectsBadCredentials(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"user_id": "runner-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	req.Header.Set("X-API-Key", "wrong")
	req.Header.Set("X-API-Secret", "wrong")

	_, err := doRequest(h.GenerateJWT, req, nil)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestGenerateJWTRejectsWhenNoKeyConfigured(t *testing.T) {
	store := newMemStore()
	bus := eventbus.NewChannelEventBus()
	t.Cleanup(func() { bus.Close() })

	// An empty configured key must never act as a wildcard.
	h := NewHandler(store, bus, hasher.NewSHA256(), websocket.NewHub(), &config.Config{JWTSecret: "s"})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/token", strings.NewReader(`{"user_id": "runner-1"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	_, err := doRequest(h.GenerateJWT, req, nil)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestJWTMiddlewareAcceptsIssuedToken(t *testing.T) {
	h, _, _ := newTestHandler(t)
	token := issueToken(t, h, "runner-1")

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)

	called := false
	next := func(c echo.Context) error {
		called = true
		require.Equal(t, "runner-1", c.Get("user_id"))
		require.Equal(t, domain.AccessAuthenticated, c.Get("access_level"))
		return nil
	}
	require.NoError(t, h.JWTMiddleware(next)(c))
	require.True(t, called)
}

func TestJWTMiddlewareRejectsGarbage(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer not-a-token")
	c := echo.New().NewContext(req, httptest.NewRecorder())

	err := h.JWTMiddleware(func(c echo.Context) error { return nil })(c)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusUnauthorized, httpErr.Code)
}

func TestOptionalJWTMiddlewareClassifies(t *testing.T) {
	h, _, _ := newTestHandler(t)
	token := issueToken(t, h, "runner-1")

	// A valid token in the query param: browser WebSocket handshakes
	// cannot set headers.
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	require.NoError(t, h.OptionalJWTMiddleware(func(c echo.Context) error { return nil })(c))
	require.Equal(t, "runner-1", c.Get("user_id"))
	require.Equal(t, domain.AccessAuthenticated, c.Get("access_level"))

	// No token: classified anonymous, never rejected.
	req = httptest.NewRequest(http.MethodGet, "/ws", nil)
	c = echo.New().NewContext(req, httptest.NewRecorder())
	require.NoError(t, h.OptionalJWTMiddleware(func(c echo.Context) error { return nil })(c))
	require.Equal(t, "", c.Get("user_id"))
	require.Equal(t, domain.AccessAnonymous, c.Get("access_level"))

	// A garbage token degrades to anonymous instead of failing.
	req = httptest.NewRequest(http.MethodGet, "/ws?token=bogus", nil)
	c = echo.New().NewContext(req, httptest.NewRecorder())
	require.NoError(t, h.OptionalJWTMiddleware(func(c echo.Context) error { return nil })(c))
	require.Equal(t, domain.AccessAnonymous, c.Get("access_level"))
}

func TestCreateInsightUpsertsAndPublishes(t *testing.T) {
	h, store, bus := newTestHandler(t)

	events, err := bus.Subscribe(context.Background(), websocket.InsightsUpdatedTopic, "")
	require.NoError(t, err)

	body := `{"source_id": "yt-123", "data": {"insight": {"observation": "cadence drops late", "outcome": "form breaks down"}}}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	rec, err := doRequest(h.CreateInsight, req, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.TrainingInsight
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.InsightID)
	require.Equal(t, "yt-123", created.SourceID)

	// The id is content-derived, so the store holds exactly one row.
	require.Len(t, store.insights, 1)

	select {
	case ev := <-events:
		var update domain.InsightsUpdatedEvent
		require.NoError(t, json.Unmarshal(ev.Payload, &update))
		require.Equal(t, created.InsightID, update.InsightID)
	case <-time.After(time.Second):
		t.Fatal("no insights.updated event published")
	}
}

func TestCreateInsightValidatesPayload(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/insights", strings.NewReader(`{"data": {"x": 1}}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)

	_, err := doRequest(h.CreateInsight, req, nil)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)
}

func TestGetInsightNotFound(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights/nope", nil)
	_, err := doRequest(h.GetInsight, req, map[string]string{"id": "nope"})
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, httpErr.Code)
}

func TestListInsightsValidatesLimit(t *testing.T) {
	h, _, _ := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/insights?limit=0", nil)
	_, err := doRequest(h.ListInsights, req, nil)
	httpErr, ok := err.(*echo.HTTPError)
	require.True(t, ok)
	require.Equal(t, http.StatusBadRequest, httpErr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/insights", nil)
	rec, err := doRequest(h.ListInsights, req, nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))
}
