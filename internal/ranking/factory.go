package ranking

import (
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// StrategyFor returns the scoring strategy for an INDIVIDUAL_RANKING
// tournament.
func StrategyFor(scoringType string) (Strategy, error) {
	switch scoringType {
	case models.ScoringTimeBased:
		return TimeBasedStrategy{}, nil
	case models.ScoringScoreBased:
		return ScoreBasedStrategy{}, nil
	case models.ScoringRoundsBased:
		return RoundsBasedStrategy{}, nil
	case models.ScoringPlacement:
		return PlacementStrategy{}, nil
	case models.ScoringDistanceBased:
		return DistanceBasedStrategy{}, nil
	default:
		return nil, utils.NewAppError(utils.ErrCodeUnknownScoringType,
			"Unknown scoring type", scoringType)
	}
}

// ValidateTypeCode checks a head-to-head tournament type code. swiss is
// reserved in the catalog but not implemented and fails fast.
func ValidateTypeCode(typeCode string) error {
	switch typeCode {
	case models.TypeLeague, models.TypeKnockout, models.TypeGroupKnockout:
		return nil
	case models.TypeSwiss:
		return utils.NewAppError(utils.ErrCodeUnknownScoringType,
			"Swiss tournaments are not implemented", typeCode)
	default:
		return utils.NewAppError(utils.ErrCodeUnknownScoringType,
			"Unknown tournament type code", typeCode)
	}
}
