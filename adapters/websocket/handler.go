package websocket

import (
	"github.com/labstack/echo/v4"

	"github.com/tandarun/coach/domain"
	"github.com/tandarun/coach/usecase"
)

// Handler upgrades "/ws" requests and runs the chat loop until the
// connection goes away. Anonymous connections are accepted; they are
// short-circuited at message time.
func (s *Server) Handler(c echo.Context) error {
	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return err
	}

	userID, _ := c.Get("user_id").(string)
	access := domain.AccessAnonymous
	if v, ok := c.Get("access_level").(domain.AccessLevel); ok {
		access = v
	}

	client := NewClient(conn, userID, access)
	s.hub.Register(client)
	defer s.hub.Unregister(client)

	client.Run()

	s.svc.Run(client.Context(), usecase.ConnInfo{
		UserID: client.UserID(),
		Access: client.Access(),
	}, client.Inbound(), client.SendQueue())

	return nil
}
