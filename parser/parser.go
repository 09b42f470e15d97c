// Package parser decodes the websocket protocol envelopes clients send and
// renders the payloads the server pushes back.
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Client to server events.
const (
	EventBattleRequest = "battle-request"
	EventBattleAccept  = "battle-accept"
	EventBattleDecline = "battle-decline"
	EventBattleAction  = "battle-action"
	EventForfeit       = "forfeit"
)

// Server to client events.
const (
	EventBattleIncoming       = "battle-incoming"
	EventBattleRequestSent    = "battle-request-sent"
	EventBattleError          = "battle-error"
	EventBattleDeclined       = "battle-declined"
	EventBattleStart          = "battle-start"
	EventBattleActionAck      = "battle-action-ack"
	EventOpponentActionReady  = "opponent-action-ready"
	EventBattleUpdate         = "battle-update"
	EventBattleEnd            = "battle-end"
	EventOpponentDisconnected = "opponent-disconnected"
)

var (
	ErrMalformed    = errors.New("malformed message")
	ErrUnknownEvent = errors.New("unknown event")
)

// Envelope is the frame shape used in both directions.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Message is a decoded and validated client command. Only the field relevant
// to Event is set.
type Message struct {
	Event        string
	TargetUserID string
	FromUserID   string
	MoveID       string
}

type commandData struct {
	TargetUserID string `json:"targetUserId"`
	FromUserID   string `json:"fromUserId"`
	MoveID       string `json:"moveId"`
}

// Decode parses one inbound frame.
func Decode(raw []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	var data commandData
	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, &data); err != nil {
			return Message{}, fmt.Errorf("%w: %s data: %v", ErrMalformed, env.Event, err)
		}
	}

	msg := Message{Event: env.Event}
	switch env.Event {
	case EventBattleRequest:
		msg.TargetUserID = strings.TrimSpace(data.TargetUserID)
		if msg.TargetUserID == "" {
			return Message{}, fmt.Errorf("%w: targetUserId is required", ErrMalformed)
		}
	case EventBattleAccept, EventBattleDecline:
		msg.FromUserID = strings.TrimSpace(data.FromUserID)
		if msg.FromUserID == "" {
			return Message{}, fmt.Errorf("%w: fromUserId is required", ErrMalformed)
		}
	case EventBattleAction:
		msg.MoveID = strings.ToLower(strings.TrimSpace(data.MoveID))
		if msg.MoveID == "" {
			return Message{}, fmt.Errorf("%w: moveId is required", ErrMalformed)
		}
	case EventForfeit:
	case "":
		return Message{}, fmt.Errorf("%w: event is required", ErrMalformed)
	default:
		return Message{}, fmt.Errorf("%w: %s", ErrUnknownEvent, env.Event)
	}
	return msg, nil
}

// Encode builds an outbound frame. A nil payload omits the data field.
func Encode(event string, payload any) ([]byte, error) {
	env := Envelope{Event: event}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode %s: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// EncodeCommand builds an inbound frame. Clients and tests use it.
func EncodeCommand(msg Message) ([]byte, error) {
	var payload any
	switch msg.Event {
	case EventBattleRequest:
		payload = struct {
			TargetUserID string `json:"targetUserId"`
		}{msg.TargetUserID}
	case EventBattleAccept, EventBattleDecline:
		payload = struct {
			FromUserID string `json:"fromUserId"`
		}{msg.FromUserID}
	case EventBattleAction:
		payload = struct {
			MoveID string `json:"moveId"`
		}{msg.MoveID}
	}
	return Encode(msg.Event, payload)
}
