package arena

import "errors"

// Validation errors. They are reported only to the offending connection and
// never change battle state.
var (
	ErrUnknownConnection = errors.New("connection is not registered")
	ErrNotInBattle       = errors.New("you are not in a battle")
	ErrUnknownMove       = errors.New("your creature does not know that move")
	ErrNoPP              = errors.New("that move has no PP left")
	ErrAlreadySubmitted  = errors.New("you already chose a move this turn")
	ErrTargetOffline     = errors.New("that player is not online")
	ErrSelfChallenge     = errors.New("you cannot challenge yourself")
	ErrAlreadyInBattle   = errors.New("you are already in a battle")
	ErrTargetInBattle    = errors.New("that player is already in a battle")
	ErrChallengeNotFound = errors.New("challenge not found or expired")
	ErrNoLeadCreature    = errors.New("no lead creature available")
)

var validationErrors = []error{
	ErrUnknownConnection, ErrNotInBattle, ErrUnknownMove, ErrNoPP,
	ErrAlreadySubmitted, ErrTargetOffline, ErrSelfChallenge, ErrAlreadyInBattle,
	ErrTargetInBattle, ErrChallengeNotFound, ErrNoLeadCreature,
}

// IsValidation reports whether err is a user-facing validation failure.
func IsValidation(err error) bool {
	for _, v := range validationErrors {
		if errors.Is(err, v) {
			return true
		}
	}
	return false
}

// PublicMessage is the battle-error text for err. Infrastructure failures
// are not exposed.
func PublicMessage(err error) string {
	if IsValidation(err) {
		return err.Error()
	}
	return "internal error, please try again"
}
