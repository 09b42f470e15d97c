// Package client is a small websocket client for the battle protocol, used by
// bots and integration tests.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"showdown-arena/game"
	"showdown-arena/parser"
)

type Client struct {
	Conn *websocket.Conn

	writeMu sync.Mutex
}

// Dial connects to a /battle endpoint presenting token as a bearer
// credential. On a rejected handshake the HTTP status is returned alongside
// the error.
func Dial(ctx context.Context, url, token string) (*Client, int, error) {
	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		return nil, status, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{Conn: c}, resp.StatusCode, nil
}

func (c *Client) Close() error {
	return c.Conn.Close()
}

func (c *Client) Send(msg parser.Message) error {
	frame, err := parser.EncodeCommand(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.Conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *Client) Challenge(userID string) error {
	return c.Send(parser.Message{Event: parser.EventBattleRequest, TargetUserID: userID})
}

func (c *Client) Accept(fromUserID string) error {
	return c.Send(parser.Message{Event: parser.EventBattleAccept, FromUserID: fromUserID})
}

func (c *Client) Decline(fromUserID string) error {
	return c.Send(parser.Message{Event: parser.EventBattleDecline, FromUserID: fromUserID})
}

func (c *Client) Act(moveID string) error {
	return c.Send(parser.Message{Event: parser.EventBattleAction, MoveID: moveID})
}

func (c *Client) Forfeit() error {
	return c.Send(parser.Message{Event: parser.EventForfeit})
}

// Next reads the next server event, waiting at most timeout.
func (c *Client) Next(timeout time.Duration) (parser.Envelope, error) {
	if err := c.Conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return parser.Envelope{}, err
	}
	_, raw, err := c.Conn.ReadMessage()
	if err != nil {
		return parser.Envelope{}, err
	}
	var env parser.Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return parser.Envelope{}, fmt.Errorf("decode frame: %w", err)
	}
	return env, nil
}

// Await skips events until one named event arrives and decodes its data
// into out, which may be nil.
func (c *Client) Await(event string, timeout time.Duration, out any) error {
	deadline := time.Now().Add(timeout)
	for {
		left := time.Until(deadline)
		if left <= 0 {
			return fmt.Errorf("timed out waiting for %s", event)
		}
		env, err := c.Next(left)
		if err != nil {
			return fmt.Errorf("waiting for %s: %w", event, err)
		}
		if env.Event != event {
			continue
		}
		if out == nil || len(env.Data) == 0 {
			return nil
		}
		return json.Unmarshal(env.Data, out)
	}
}

// BestMove picks the move with the highest expected power against the
// opponent's types, skipping moves without PP. Status moves score as if they
// had power 40 so a bot still uses them when nothing else hits.
func BestMove(moves []parser.MoveInfo, pp map[string]int, opponent []game.Type) (parser.MoveInfo, bool) {
	var (
		best      parser.MoveInfo
		bestScore = -1.0
	)
	for _, m := range moves {
		left, ok := pp[m.ID]
		if !ok {
			left = m.PP
		}
		if left <= 0 {
			continue
		}
		power := m.Power
		if m.Category == game.CategoryStatus {
			power = 40
		}
		score := float64(power) * game.TypeMultiplier(m.Type, opponent...)
		if score > bestScore {
			best, bestScore = m, score
		}
	}
	return best, bestScore >= 0
}
