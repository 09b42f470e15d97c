package arena

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"showdown-arena/game"
	"showdown-arena/parser"
	"showdown-arena/session"
)

// SubmitAction records connID's move for the current turn and resolves the
// turn once both sides have chosen.
func (o *Orchestrator) SubmitAction(ctx context.Context, connID, moveID string) error {
	return o.withRoom(ctx, connID, func(room *game.Room, side game.Side) error {
		f := room.Fighter(side)
		if !f.KnowsMove(moveID) {
			return ErrUnknownMove
		}
		if f.PPLeft(moveID) <= 0 {
			return ErrNoPP
		}
		if room.Pending.Get(side) != "" {
			return ErrAlreadySubmitted
		}
		room.Pending.Set(side, moveID)

		if room.Pending.Count() < 2 {
			if err := o.saveRoom(ctx, room); err != nil {
				return err
			}
			o.send(connID, parser.EventBattleActionAck, parser.ActionAck{MoveID: moveID})
			o.send(room.Fighter(side.Opponent()).ConnID, parser.EventOpponentActionReady, nil)
			return nil
		}

		o.sched.Cancel(room.ID, PurposeAction)
		return o.resolve(ctx, room)
	})
}

// resolve runs one turn on room, which must hold both pending moves. The
// resolved state is stored before anyone sees it. On failure the stored room
// still holds the previous turn, so the action timer is re-armed for it.
func (o *Orchestrator) resolve(ctx context.Context, room *game.Room) (err error) {
	ctx, span := o.tracer.Start(ctx, "arena.resolveTurn")
	defer span.End()
	span.SetAttributes(attribute.String("arena.room_id", room.ID), attribute.Int("arena.turn", room.Turn+1))

	turn := room.Turn
	defer func() {
		if err != nil {
			span.RecordError(err)
			o.armActionTimer(room.ID, turn)
		}
	}()

	if err := room.Transition(game.PhaseResolving); err != nil {
		return err
	}
	moveA, okA := o.catalog.Move(room.Pending.First)
	moveB, okB := o.catalog.Move(room.Pending.Second)
	if !okA || !okB {
		return fmt.Errorf("room %s: pending move missing from catalog", room.ID)
	}

	res := game.ResolveTurn(room, moveA, moveB, room.First.Types, room.Second.Types, o.rng)
	o.log.DebugContext(ctx, "turn resolved", "room", room.ID, "turn", res.Turn, "over", res.Over)

	if res.Over {
		o.broadcast(room, parser.EventBattleUpdate, parser.RenderUpdate(room, res.Log))
		o.finalize(ctx, room, res.Winner, ReasonFainted)
		return nil
	}
	if err := room.Transition(game.PhaseAwaitingActions); err != nil {
		return err
	}
	deadline := o.clock.Now().UTC().Add(o.cfg.ActionTimeout)
	room.Deadline = &deadline
	if err := o.saveRoom(ctx, room); err != nil {
		return err
	}
	o.broadcast(room, parser.EventBattleUpdate, parser.RenderUpdate(room, res.Log))
	o.armActionTimer(room.ID, room.Turn)
	return nil
}

// armActionTimer arms the action window for turn. A fire that finds the room
// on a later turn is ignored.
func (o *Orchestrator) armActionTimer(roomID string, turn int) {
	o.sched.Schedule(roomID, PurposeAction, o.cfg.ActionTimeout, func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		o.timeout(ctx, roomID, turn)
	})
}

// timeout ends a room whose action window for turn elapsed. The side that
// submitted wins; with no submissions nobody does. A room already gone or
// already past turn is a no-op.
func (o *Orchestrator) timeout(ctx context.Context, roomID string, turn int) {
	unlock := o.lockRoom(roomID)
	defer unlock()

	room, err := o.loadRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			o.log.ErrorContext(ctx, "timeout: load room", "room", roomID, "error", err)
		}
		return
	}
	if room.Phase != game.PhaseAwaitingActions || room.Turn != turn {
		return
	}

	winner := game.SideNone
	switch {
	case room.Pending.First != "" && room.Pending.Second == "":
		winner = game.SideFirst
	case room.Pending.Second != "" && room.Pending.First == "":
		winner = game.SideSecond
	case room.Pending.Count() == 2:
		return
	}
	o.log.InfoContext(ctx, "action timeout", "room", roomID, "winner", winner.String())
	o.finalize(ctx, room, winner, ReasonTimeout)
}

// Forfeit ends connID's battle in favor of the opponent.
func (o *Orchestrator) Forfeit(ctx context.Context, connID string) error {
	return o.withRoom(ctx, connID, func(room *game.Room, side game.Side) error {
		o.log.InfoContext(ctx, "forfeit", "room", room.ID, "side", side.String())
		o.finalize(ctx, room, side.Opponent(), ReasonForfeit)
		return nil
	})
}

// Disconnect tears down connID's presence. If it was in a battle the opponent
// is told and a grace timer is armed; when it expires with the room still
// alive the opponent wins.
func (o *Orchestrator) Disconnect(ctx context.Context, connID string) {
	roomID, inRoom := o.presence.RoomOf(connID)
	id, ok := o.presence.Unregister(connID)
	if !ok {
		return
	}
	o.log.InfoContext(ctx, "player disconnected", "conn", connID, "user", id.UserID)
	if !inRoom {
		return
	}

	unlock := o.lockRoom(roomID)
	defer unlock()
	room, err := o.loadRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			o.log.ErrorContext(ctx, "disconnect: load room", "room", roomID, "error", err)
		}
		return
	}
	side := room.SideOf(id.UserID)
	if side == game.SideNone || room.Fighter(side).ConnID != connID {
		return
	}

	opponent := room.Fighter(side.Opponent())
	o.send(opponent.ConnID, parser.EventOpponentDisconnected, parser.OpponentDisconnected{
		Username: id.Username,
		GraceMs:  o.cfg.DisconnectGrace.Milliseconds(),
	})
	o.sched.Schedule(roomID, gracePurpose(id.UserID), o.cfg.DisconnectGrace, func() {
		ctx, cancel := context.WithTimeout(context.Background(), callbackTimeout)
		defer cancel()
		o.graceExpired(ctx, roomID, id.UserID)
	})
}

func (o *Orchestrator) graceExpired(ctx context.Context, roomID, userID string) {
	unlock := o.lockRoom(roomID)
	defer unlock()

	room, err := o.loadRoom(ctx, roomID)
	if err != nil {
		if !errors.Is(err, session.ErrNotFound) {
			o.log.ErrorContext(ctx, "grace: load room", "room", roomID, "error", err)
		}
		return
	}
	side := room.SideOf(userID)
	if side == game.SideNone || room.Phase == game.PhaseEnded {
		return
	}
	o.finalize(ctx, room, side.Opponent(), ReasonDisconnect)
}
