package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"stayreserve/internal/metrics"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4 * 1024
)

type subscriber struct {
	conn       *websocket.Conn
	send       chan []byte
	apartments map[int64]bool
}

// Feed pushes booking events to websocket clients watching an apartment's availability.
type Feed struct {
	mu   sync.RWMutex
	subs map[*subscriber]struct{}
	log  *zap.Logger
}

func NewFeed(log *zap.Logger) *Feed {
	return &Feed{
		subs: make(map[*subscriber]struct{}),
		log:  log.Named("feed"),
	}
}

func (f *Feed) register(s *subscriber) {
	f.mu.Lock()
	f.subs[s] = struct{}{}
	n := len(f.subs)
	f.mu.Unlock()
	metrics.SetFeedClients(n)
}

func (f *Feed) unregister(s *subscriber) {
	f.mu.Lock()
	if _, ok := f.subs[s]; ok {
		delete(f.subs, s)
		close(s.send)
	}
	n := len(f.subs)
	f.mu.Unlock()
	metrics.SetFeedClients(n)
}

// Clients returns the number of connected subscribers.
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Publish delivers e to every subscriber of e.ApartmentID. Slow clients miss events.
func (f *Feed) Publish(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	for s := range f.subs {
		if !s.apartments[e.ApartmentID] {
			continue
		}
		select {
		case s.send <- data:
		default:
		}
	}
	return nil
}

// Serve runs the connection until the client goes away.
func (f *Feed) Serve(conn *websocket.Conn, apartments []int64) {
	s := &subscriber{
		conn:       conn,
		send:       make(chan []byte, 64),
		apartments: make(map[int64]bool, len(apartments)),
	}
	for _, id := range apartments {
		s.apartments[id] = true
	}

	f.register(s)
	go f.writePump(s)
	f.readPump(s)
}

type feedCommand struct {
	Type        string `json:"type"`
	ApartmentID int64  `json:"apartment_id"`
}

func (f *Feed) readPump(s *subscriber) {
	defer func() {
		f.unregister(s)
		s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMsgSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				f.log.Debug("feed client read", zap.Error(err))
			}
			return
		}

		var cmd feedCommand
		if err := json.Unmarshal(msg, &cmd); err != nil || cmd.ApartmentID <= 0 {
			continue
		}
		switch cmd.Type {
		case "subscribe":
			f.mu.Lock()
			s.apartments[cmd.ApartmentID] = true
			f.mu.Unlock()
		case "unsubscribe":
			f.mu.Lock()
			delete(s.apartments, cmd.ApartmentID)
			f.mu.Unlock()
		}
	}
}

func (f *Feed) writePump(s *subscriber) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		s.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-s.send:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = s.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
