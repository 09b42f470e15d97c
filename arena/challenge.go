package arena

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"showdown-arena/game"
	"showdown-arena/parser"
	"showdown-arena/presence"
	"showdown-arena/session"
	"showdown-arena/storage"
)

// Challenge is the pending invitation stored until accepted, declined or
// expired.
type Challenge struct {
	FromUserID   string    `json:"fromUserId"`
	FromUsername string    `json:"fromUsername"`
	ToUserID     string    `json:"toUserId"`
	CreatedAt    time.Time `json:"createdAt"`
}

func newRoomID() string { return uuid.NewString() }

// RequestChallenge invites targetUserID to a battle on behalf of fromConn.
func (o *Orchestrator) RequestChallenge(ctx context.Context, fromConn, targetUserID string) error {
	from, err := o.identity(fromConn)
	if err != nil {
		return err
	}
	if targetUserID == from.UserID {
		return ErrSelfChallenge
	}

	o.handshakeMu.Lock()
	defer o.handshakeMu.Unlock()

	targetConn, ok := o.presence.Connection(targetUserID)
	if !ok {
		return ErrTargetOffline
	}
	if _, busy, err := o.activeRoom(ctx, fromConn); err != nil {
		return err
	} else if busy {
		return ErrAlreadyInBattle
	}
	if _, busy, err := o.activeRoom(ctx, targetConn); err != nil {
		return err
	} else if busy {
		return ErrTargetInBattle
	}

	marker := Challenge{
		FromUserID:   from.UserID,
		FromUsername: from.Username,
		ToUserID:     targetUserID,
		CreatedAt:    o.clock.Now().UTC(),
	}
	if err := session.PutJSON(ctx, o.store, challengeKey(from.UserID, targetUserID), marker, o.cfg.ChallengeTTL); err != nil {
		return fmt.Errorf("store challenge: %w", err)
	}

	o.send(targetConn, parser.EventBattleIncoming, parser.Incoming{FromUserID: from.UserID, FromUsername: from.Username})
	o.send(fromConn, parser.EventBattleRequestSent, parser.RequestSent{TargetUserID: targetUserID})
	o.log.InfoContext(ctx, "challenge sent", "from", from.UserID, "to", targetUserID)
	return nil
}

// DeclineChallenge drops the pending challenge from fromUserID and tells the
// challenger.
func (o *Orchestrator) DeclineChallenge(ctx context.Context, toConn, fromUserID string) error {
	to, err := o.identity(toConn)
	if err != nil {
		return err
	}

	o.handshakeMu.Lock()
	defer o.handshakeMu.Unlock()

	key := challengeKey(fromUserID, to.UserID)
	var marker Challenge
	if err := session.GetJSON(ctx, o.store, key, &marker); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if err := o.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("delete challenge: %w", err)
	}
	if fromConn, ok := o.presence.Connection(fromUserID); ok {
		o.send(fromConn, parser.EventBattleDeclined, parser.Declined{ByUsername: to.Username})
	}
	o.log.InfoContext(ctx, "challenge declined", "from", fromUserID, "to", to.UserID)
	return nil
}

// AcceptChallenge consumes the pending challenge from fromUserID and starts
// the battle. The challenger takes the first role.
func (o *Orchestrator) AcceptChallenge(ctx context.Context, toConn, fromUserID string) (err error) {
	ctx, span := o.tracer.Start(ctx, "arena.AcceptChallenge")
	defer func() {
		if err != nil && !IsValidation(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	to, err := o.identity(toConn)
	if err != nil {
		return err
	}

	o.handshakeMu.Lock()
	defer o.handshakeMu.Unlock()

	key := challengeKey(fromUserID, to.UserID)
	var marker Challenge
	if err := session.GetJSON(ctx, o.store, key, &marker); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrChallengeNotFound
		}
		return fmt.Errorf("load challenge: %w", err)
	}
	if err := o.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("consume challenge: %w", err)
	}

	fromConn, ok := o.presence.Connection(fromUserID)
	if !ok {
		return ErrTargetOffline
	}
	from, err := o.identity(fromConn)
	if err != nil {
		return ErrTargetOffline
	}
	if _, busy, err := o.activeRoom(ctx, toConn); err != nil {
		return err
	} else if busy {
		return ErrAlreadyInBattle
	}
	if _, busy, err := o.activeRoom(ctx, fromConn); err != nil {
		return err
	} else if busy {
		return ErrTargetInBattle
	}

	first, err := o.buildFighter(ctx, from, fromConn)
	if err != nil {
		return err
	}
	second, err := o.buildFighter(ctx, to, toConn)
	if err != nil {
		return err
	}

	now := o.clock.Now().UTC()
	room := game.NewRoom(o.newID(), first, second, now)
	deadline := now.Add(o.cfg.ActionTimeout)
	room.Deadline = &deadline
	span.SetAttributes(
		attribute.String("arena.room_id", room.ID),
		attribute.String("arena.first", from.UserID),
		attribute.String("arena.second", to.UserID),
	)

	unlock := o.lockRoom(room.ID)
	defer unlock()
	if err := o.saveRoom(ctx, room); err != nil {
		return err
	}
	o.presence.BindRoom(fromConn, room.ID)
	o.presence.BindRoom(toConn, room.ID)
	o.armActionTimer(room.ID, room.Turn)

	o.broadcast(room, parser.EventBattleStart, parser.RenderStart(room, o.catalog))
	o.log.InfoContext(ctx, "battle started",
		"room", room.ID,
		"first", from.UserID,
		"second", to.UserID,
		"goes_first", room.GoesFirst.String(),
	)
	return nil
}

// buildFighter turns the user's stored lead creature into a fresh fighter
// with full PP.
func (o *Orchestrator) buildFighter(ctx context.Context, id presence.Identity, connID string) (game.Fighter, error) {
	lead, err := o.persist.LeadCreature(ctx, id.UserID)
	if errors.Is(err, storage.ErrNotFound) {
		return game.Fighter{}, fmt.Errorf("%w for %s", ErrNoLeadCreature, id.Username)
	}
	if err != nil {
		return game.Fighter{}, fmt.Errorf("load lead creature for %s: %w", id.UserID, err)
	}
	if lead.HP <= 0 {
		return game.Fighter{}, fmt.Errorf("%w: %s's lead creature has fainted", ErrNoLeadCreature, id.Username)
	}

	species, ok := o.catalog.Species(lead.SpeciesID)
	if !ok {
		return game.Fighter{}, fmt.Errorf("lead creature %s: unknown species %q", lead.CreatureID, lead.SpeciesID)
	}
	if lead.BaseStats != (game.BaseStats{}) {
		species.Base = lead.BaseStats
	}
	ids := make([]string, 0, len(lead.Moves))
	for _, slot := range lead.Moves {
		ids = append(ids, slot.ID)
	}
	moves, err := o.catalog.Moves(ids)
	if err != nil {
		return game.Fighter{}, fmt.Errorf("lead creature %s: %w", lead.CreatureID, err)
	}

	f := game.NewFighter(species, lead.Level, lead.HP, lead.MaxHP, moves)
	f.UserID = id.UserID
	f.ConnID = connID
	f.Username = id.Username
	f.CreatureID = lead.CreatureID
	if lead.Nickname != "" {
		f.Name = lead.Nickname
	}
	return f, nil
}
