package scheduler

import (
	"fmt"

	"github.com/academyhq/tournament-engine/pkg/utils"
)

// Accepted ranges for schedule timing knobs, shared by tournament create,
// tournament update and the schedule-config endpoint.
const (
	MinMatchMinutes = 1
	MaxMatchMinutes = 480
	MinBreakMinutes = 0
	MaxBreakMinutes = 120
	MinFields       = 1
	MaxFields       = 20
)

// ValidateMatchDuration checks a match length in minutes against the
// accepted range.
func ValidateMatchDuration(minutes int) *utils.AppError {
	if minutes < MinMatchMinutes || minutes > MaxMatchMinutes {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("match_duration_minutes must be between %d and %d", MinMatchMinutes, MaxMatchMinutes))
	}
	return nil
}

// ValidateBreakDuration checks a break length in minutes against the
// accepted range.
func ValidateBreakDuration(minutes int) *utils.AppError {
	if minutes < MinBreakMinutes || minutes > MaxBreakMinutes {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("break_duration_minutes must be between %d and %d", MinBreakMinutes, MaxBreakMinutes))
	}
	return nil
}

// ValidateParallelFields checks a field count against the accepted range.
func ValidateParallelFields(fields int) *utils.AppError {
	if fields < MinFields || fields > MaxFields {
		return utils.NewAppError(utils.ErrCodeValidation,
			fmt.Sprintf("parallel_fields must be between %d and %d", MinFields, MaxFields))
	}
	return nil
}
