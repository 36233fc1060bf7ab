package events

import (
	"net/http"
	"strconv"
	"strings"

	"stayreserve/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type FeedHandler struct {
	feed     *Feed
	upgrader websocket.Upgrader
}

// NewFeedHandler accepts browser connections only from allowedOrigins.
// Requests without an Origin header (non-browser clients) are accepted.
func NewFeedHandler(feed *Feed, allowedOrigins []string) *FeedHandler {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &FeedHandler{
		feed: feed,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowed[origin]
			},
		},
	}
}

func (h *FeedHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/ws/availability", h.Handle)
}

// Handle serves GET /ws/availability?apartment_id=1,2. More apartments can be
// watched later with {"type":"subscribe","apartment_id":N}.
func (h *FeedHandler) Handle(c *gin.Context) {
	var apartments []int64
	for _, raw := range strings.Split(c.Query("apartment_id"), ",") {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			response.Error(c, http.StatusBadRequest, "INVALID_ID", "Invalid apartment ID")
			return
		}
		apartments = append(apartments, id)
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.feed.log.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	h.feed.Serve(conn, apartments)
}
