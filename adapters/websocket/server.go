package websocket

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/usecase"
	"github.com/tandarun/coach/utils/log"
)

const (
	InsightsUpdatedTopic = "insights.updated"

	insightsNoticeText = "I just picked up fresh coaching insights. Ask me for an updated read on your training!"
)

type Server struct {
	upgrader websocket.Upgrader
	svc      *usecase.ChatService
	renderer usecase.Renderer
	bus      domain.EventBus
	hub      *Hub
}

func NewServer(svc *usecase.ChatService, renderer usecase.Renderer, bus domain.EventBus) *Server {
	server := &Server{
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		svc:      svc,
		renderer: renderer,
		bus:      bus,
		hub:      NewHub(),
	}

	go server.startInsightsListener()

	return server
}

func (s *Server) Hub() *Hub {
	return s.hub
}

// startInsightsListener pushes a system bubble to every connected
// client when fresh insights are ingested.
func (s *Server) startInsightsListener() {
	ctx := context.Background()

	events, err := s.bus.Subscribe(ctx, InsightsUpdatedTopic, "")
	if err != nil {
		log.WithCtx(ctx).Error("Failed to subscribe to insights topic", zap.Error(err))
		return
	}

	log.WithCtx(ctx).Info("WebSocket server listening for insight updates")

	for ev := range events {
		var update domain.InsightsUpdatedEvent
		if err := json.Unmarshal(ev.Payload, &update); err != nil {
			log.WithCtx(ctx).Error("Failed to unmarshal insights event", zap.Error(err))
			continue
		}

		markup, err := s.renderer.MessageBubble(insightsNoticeText, true, "")
		if err != nil {
			log.WithCtx(ctx).Error("Failed to render insights notice", zap.Error(err))
			continue
		}

		s.hub.Broadcast([]byte(markup))
		log.WithCtx(ctx).Info("Broadcasted insights notice",
			zap.String("insight_id", update.InsightID),
			zap.Int("clients", s.hub.ClientCount()))
	}
}
