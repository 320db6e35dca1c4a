// Package feed streams broadcasts to websocket spectators. Every connection
// is one hub subscription that writes JSON frames.
package feed

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"

	"github.com/sentientmushes/smadventure/engine/broadcast"
	"github.com/sentientmushes/smadventure/types"
)

// Websocket settings
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 64
)

// ErrSlowSpectator is reported when a spectator's send buffer is full and
// a frame was dropped.
var ErrSlowSpectator = errors.New("spectator send buffer full")

// Frame is one delivered broadcast as spectators receive it.
type Frame struct {
	ID     string      `json:"id"`
	Level  types.Level `json:"level"`
	Places []string    `json:"places,omitempty"`
	Text   string      `json:"text"`
}

type server struct {
	hub      *broadcast.Hub
	level    types.Level
	log      logrus.FieldLogger
	upgrader websocket.Upgrader
}

// Handler returns an http.Handler upgrading requests to spectator feeds
// that receive every broadcast at or above level. Repeated ?place= query
// parameters narrow a feed to those places.
func Handler(hub *broadcast.Hub, level types.Level, log logrus.FieldLogger) http.Handler {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &server{
		hub:   hub,
		level: level,
		log:   log.WithField("component", "feed"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("websocket upgrade failed")
		return
	}

	c := &spectator{
		conn: conn,
		send: make(chan Frame, sendBuffer),
		done: make(chan struct{}),
	}
	name := s.hub.Subscribe("feed:"+ulid.Make().String(), c, broadcast.Filter{
		Min:    s.level,
		Places: r.URL.Query()["place"],
	})
	log := s.log.WithFields(logrus.Fields{"channel": name, "remote": r.RemoteAddr})
	log.Info("spectator connected")

	go c.writePump(log)
	c.readPump(log)

	s.hub.Unsubscribe(name)
	c.stop()
	log.Info("spectator disconnected")
}

// spectator is one websocket connection. Frames flow hub → send →
// writePump; done closes once the connection is finished.
type spectator struct {
	conn *websocket.Conn
	send chan Frame
	done chan struct{}
	once sync.Once
}

func (c *spectator) stop() {
	c.once.Do(func() { close(c.done) })
}

// Deliver queues m for writing. It never blocks the hub: a full buffer
// drops the frame.
func (c *spectator) Deliver(_ context.Context, m broadcast.Message) (bool, error) {
	select {
	case <-c.done:
		return false, nil
	default:
	}

	f := Frame{
		ID:     ulid.Make().String(),
		Level:  m.Level,
		Places: m.Places,
		Text:   m.Text,
	}
	select {
	case c.send <- f:
		return true, nil
	case <-c.done:
		return false, nil
	default:
		return false, ErrSlowSpectator
	}
}

// readPump discards client input and keeps the read deadline alive with
// pongs. It returns when the connection fails or closes.
func (c *spectator) readPump(log logrus.FieldLogger) {
	defer func() {
		if err := c.conn.Close(); err != nil {
			log.WithError(err).Debug("close after read failed")
		}
	}()

	c.conn.SetReadLimit(maxMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		log.WithError(err).Warn("failed to set read deadline")
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("websocket read failed")
			}
			return
		}
	}
}

func (c *spectator) writePump(log logrus.FieldLogger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if err := c.conn.Close(); err != nil {
			log.WithError(err).Debug("close after write failed")
		}
	}()

	for {
		select {
		case f := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Warn("failed to set write deadline")
			}
			if err := c.conn.WriteJSON(f); err != nil {
				log.WithError(err).Debug("write frame failed")
				c.stop()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.WithError(err).Warn("failed to set ping write deadline")
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				log.WithError(err).Debug("ping failed")
				c.stop()
				return
			}

		case <-c.done:
			_ = c.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			return
		}
	}
}
