package arena

import (
	"context"

	"go.opentelemetry.io/otel/attribute"

	"showdown-arena/game"
	"showdown-arena/parser"
	"showdown-arena/storage"
)

// finalize ends room. Persistence failures are logged and swallowed: both
// sides always receive battle-end, and the room, its timers and both
// bindings are always cleared. Callers hold the room lock.
func (o *Orchestrator) finalize(ctx context.Context, room *game.Room, winner game.Side, reason Reason) {
	ctx, span := o.tracer.Start(ctx, "arena.finalize")
	defer span.End()
	span.SetAttributes(
		attribute.String("arena.room_id", room.ID),
		attribute.String("arena.reason", string(reason)),
		attribute.String("arena.winner", winner.String()),
	)

	if err := room.Transition(game.PhaseEnded); err != nil {
		o.log.WarnContext(ctx, "finalize: phase", "room", room.ID, "error", err)
		room.Phase = game.PhaseEnded
	}

	record := storage.BattleRecord{
		ID:      room.ID,
		Turns:   room.Turn,
		Reason:  string(reason),
		EndedAt: o.clock.Now().UTC(),
	}
	end := parser.End{Reason: string(reason), TurnCount: room.Turn}

	if winner != game.SideNone {
		w, l := room.Fighter(winner), room.Fighter(winner.Opponent())
		xp := game.ExperienceReward(l.Level, o.rng)
		record.WinnerID, record.LoserID, record.XPAwarded = w.UserID, l.UserID, xp
		winnerID := w.UserID
		end.WinnerID, end.XPAwarded = &winnerID, xp

		if err := o.persist.RecordBattle(ctx, record); err != nil {
			o.log.ErrorContext(ctx, "finalize: record battle", "room", room.ID, "error", err)
		}
		if err := o.persist.ApplyProgression(ctx, storage.Progression{
			WinnerCreatureID: w.CreatureID,
			WinnerHP:         w.HP,
			XPGained:         xp,
			LoserCreatureID:  l.CreatureID,
			LoserHP:          l.HP,
		}); err != nil {
			o.log.ErrorContext(ctx, "finalize: apply progression", "room", room.ID, "error", err)
		}
	} else if err := o.persist.RecordBattle(ctx, record); err != nil {
		o.log.ErrorContext(ctx, "finalize: record battle", "room", room.ID, "error", err)
	}

	o.broadcast(room, parser.EventBattleEnd, end)

	if err := o.store.Delete(ctx, roomKey(room.ID)); err != nil {
		o.log.ErrorContext(ctx, "finalize: delete room", "room", room.ID, "error", err)
	}
	o.sched.CancelRoom(room.ID)
	o.presence.UnbindRoom(room.First.ConnID)
	o.presence.UnbindRoom(room.Second.ConnID)

	o.log.InfoContext(ctx, "battle ended",
		"room", room.ID,
		"reason", reason,
		"winner", record.WinnerID,
		"xp", record.XPAwarded,
		"turns", room.Turn,
	)
}
