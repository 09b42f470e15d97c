package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/sync/errgroup"

	"showdown-arena/arena"
	"showdown-arena/parser"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 64
)

var errBackpressure = errors.New("send queue is full")

type conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	log  *slog.Logger

	closeOnce sync.Once
	done      chan struct{}
}

func newConn(id string, ws *websocket.Conn, log *slog.Logger) *conn {
	return &conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		log:  log.With("conn", id),
		done: make(chan struct{}),
	}
}

func (c *conn) enqueue(frame []byte) error {
	select {
	case <-c.done:
		return nil
	default:
	}
	select {
	case c.send <- frame:
		return nil
	default:
		return errBackpressure
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
	})
}

// run drives the connection until either loop stops.
func (c *conn) run(ctx context.Context, orch *arena.Orchestrator, hub *Hub) error {
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		defer c.close()
		return c.readLoop(ctx, orch, hub)
	})
	eg.Go(func() error {
		defer c.close()
		return c.writeLoop(ctx)
	})
	return eg.Wait()
}

func (c *conn) readLoop(ctx context.Context, orch *arena.Orchestrator, hub *Hub) error {
	c.ws.SetReadLimit(maxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.log.WarnContext(ctx, "read failed", "error", err)
			}
			return nil
		}
		msg, err := parser.Decode(raw)
		if err != nil {
			hub.Send(c.id, parser.EventBattleError, parser.Error{Message: err.Error()})
			continue
		}
		if err := orch.Handle(ctx, c.id, msg); err != nil {
			if !arena.IsValidation(err) {
				c.log.ErrorContext(ctx, "handle event", "event", msg.Event, "error", err)
			}
			hub.Send(c.id, parser.EventBattleError, parser.Error{Message: arena.PublicMessage(err)})
		}
	}
}

func (c *conn) writeLoop(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-c.done:
			return nil
		case frame := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.log.WarnContext(ctx, "write failed", "error", err)
				return nil
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}
