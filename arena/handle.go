package arena

import (
	"context"
	"fmt"

	"showdown-arena/parser"
)

// Handle dispatches one decoded client command.
func (o *Orchestrator) Handle(ctx context.Context, connID string, msg parser.Message) error {
	switch msg.Event {
	case parser.EventBattleRequest:
		return o.RequestChallenge(ctx, connID, msg.TargetUserID)
	case parser.EventBattleAccept:
		return o.AcceptChallenge(ctx, connID, msg.FromUserID)
	case parser.EventBattleDecline:
		return o.DeclineChallenge(ctx, connID, msg.FromUserID)
	case parser.EventBattleAction:
		return o.SubmitAction(ctx, connID, msg.MoveID)
	case parser.EventForfeit:
		return o.Forfeit(ctx, connID)
	default:
		return fmt.Errorf("%w: %s", parser.ErrUnknownEvent, msg.Event)
	}
}
