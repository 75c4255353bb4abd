package ranking

// Service is the facade the finalizers call: strategy lookup plus the two
// operations they need.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// CalculateRankings aggregates round results under the strategy for the given
// scoring type. directionOverride may be empty to use the strategy default.
func (s *Service) CalculateRankings(scoringType string, roundResults map[string]map[string]string, participants []int64, directionOverride string) ([]RankGroup, error) {
	strategy, err := StrategyFor(scoringType)
	if err != nil {
		return nil, err
	}
	return Calculate(strategy, roundResults, participants, directionOverride), nil
}

// AggregationLabel returns the label written into
// game_results.aggregation_method for the resolved direction.
func (s *Service) AggregationLabel(scoringType, directionOverride string) (string, error) {
	strategy, err := StrategyFor(scoringType)
	if err != nil {
		return "", err
	}
	direction := directionOverride
	if direction == "" {
		direction = strategy.DefaultDirection()
	}
	return strategy.AggregationLabel(direction), nil
}
