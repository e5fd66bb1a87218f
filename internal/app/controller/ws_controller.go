package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	gorillaws "github.com/gorilla/websocket"
	"github.com/ikkim/shopcore-backend/internal/app/model"
	"github.com/ikkim/shopcore-backend/internal/middleware"
	"github.com/ikkim/shopcore-backend/internal/websocket"
)

type WSController struct {
	hub      *websocket.Hub
	upgrader gorillaws.Upgrader
}

// NewWSController accepts upgrades from allowedOrigins only; "*" allows any.
func NewWSController(hub *websocket.Hub, allowedOrigins []string) *WSController {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &WSController{
		hub: hub,
		upgrader: gorillaws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed["*"] || allowed[origin]
			},
		},
	}
}

// OrderFeed upgrades to a websocket that receives the caller's order events.
// Admins receive every order's events.
// GET /ws/orders?token=
func (ctrl *WSController) OrderFeed(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	role, _ := middleware.GetUserRole(c)

	conn, err := ctrl.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn("WebSocket upgrade failed", map[string]interface{}{
			"user_id": userID,
			"error":   err.Error(),
		})
		return
	}

	client := websocket.NewClient(ctrl.hub, websocket.NewConn(conn), userID, role == model.RoleAdmin)
	ctrl.hub.Register(client)
	go client.Serve()
}
