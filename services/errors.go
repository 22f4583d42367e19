package services

import "errors"

// Sentinel errors shared by the services and mapped onto HTTP statuses in
// the handlers package.
var (
	// Not found
	ErrStageNotFound = errors.New("stage not found")
	ErrMatchNotFound = errors.New("match not found")

	// Validation and business rules
	ErrValidationFailed          = errors.New("validation failed")
	ErrScoresRequired            = errors.New("a completed match requires both scores")
	ErrScoresInconsistent        = errors.New("scores must be provided for both sides or neither")
	ErrMatchSidesUnbound         = errors.New("cannot complete a match with an unresolved side")
	ErrInvalidMatchStatus        = errors.New("invalid match status provided")
	ErrInvalidStageStatus        = errors.New("invalid stage status provided")
	ErrInvalidStatusTransition   = errors.New("invalid stage status transition")
	ErrTeamOrderMismatch         = errors.New("team order must contain exactly the stage's rostered teams")
	ErrNegativeScore             = errors.New("scores must not be negative")
	ErrLeaderboardLimitInvalid   = errors.New("leaderboard limit must not be negative")
	ErrScoreEvaluationFailed     = errors.New("score evaluation failed")
	ErrMatchAlreadyCancelled     = errors.New("cannot record a result on a cancelled match")

	// Conflicts
	ErrStageConflict = errors.New("stage was modified concurrently, refetch and retry")
)
