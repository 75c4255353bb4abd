package finalize

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/academyhq/tournament-engine/internal/lifecycle"
	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/ranking"
	"github.com/academyhq/tournament-engine/internal/rewards"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// TournamentResult is the outcome of a tournament close.
type TournamentResult struct {
	AlreadyCompleted bool             `json:"already_completed"`
	Rewards          *rewards.Summary `json:"rewards"`
}

// TournamentFinalizer closes a whole tournament: verifies every session is
// complete, derives the final rankings, flips the status to COMPLETED and
// triggers the exactly-once reward distribution. Concurrent finalizers are
// serialized by a row lock on the tournament.
type TournamentFinalizer struct {
	db           *gorm.DB
	orchestrator *rewards.Orchestrator
	log          *logrus.Logger
}

func NewTournamentFinalizer(db *gorm.DB, orchestrator *rewards.Orchestrator, log *logrus.Logger) *TournamentFinalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TournamentFinalizer{db: db, orchestrator: orchestrator, log: log}
}

func (f *TournamentFinalizer) Finalize(tournamentID uint, actor uint) (*TournamentResult, error) {
	var out *TournamentResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		query := tx.Model(&models.Tournament{})
		// FOR UPDATE eliminates the race between concurrent finalizers;
		// sqlite (tests) serializes writers on its own.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		var tournament models.Tournament
		if err := query.Where("id = ?", tournamentID).First(&tournament).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}

		// A finalizer that lost the race sees COMPLETED and returns the
		// recorded distribution unchanged.
		if tournament.Status == models.StatusCompleted {
			summary, err := f.orchestrator.Existing(tx, tournamentID)
			if err != nil {
				var appErr *utils.AppError
				if errors.As(err, &appErr) && appErr.Code == utils.ErrCodeNotFound {
					summary = nil
				} else {
					return err
				}
			}
			out = &TournamentResult{AlreadyCompleted: true, Rewards: summary}
			return nil
		}
		if tournament.Status != models.StatusInProgress {
			return utils.NewAppError(utils.ErrCodeInvalidTransition,
				"Tournament is not ready to close",
				fmt.Sprintf("current=%s", tournament.Status))
		}

		var sessions []models.Session
		if err := tx.Where("tournament_id = ?", tournamentID).Find(&sessions).Error; err != nil {
			return err
		}
		var rankingRows int64
		if err := tx.Model(&models.TournamentRanking{}).
			Where("tournament_id = ?", tournamentID).Count(&rankingRows).Error; err != nil {
			return err
		}

		var incomplete []uint
		for _, s := range sessions {
			if s.GameResults != nil {
				continue
			}
			// An individual-ranking session also counts as complete once all
			// rounds are in and the ranking rows were written.
			if s.MatchFormat == models.MatchIndividualRanking && s.RoundsData != nil &&
				s.RoundsData.AllRoundsComplete() && rankingRows > 0 {
				continue
			}
			incomplete = append(incomplete, s.ID)
		}
		if len(incomplete) > 0 {
			return utils.NewAppError(utils.ErrCodeIncompleteStage,
				"Tournament has unfinished sessions",
				fmt.Sprintf("missing=%d", len(incomplete))).WithFields(incomplete)
		}

		if tournament.Format == models.FormatHeadToHead {
			if err := f.writeHeadToHeadRankings(tx, &tournament, sessions); err != nil {
				return err
			}
		}

		if err := lifecycle.Transition(tx, &tournament, models.StatusCompleted,
			actor, "tournament finalized", nil); err != nil {
			return err
		}

		summary, err := f.orchestrator.Distribute(tx, &tournament, actor)
		if err != nil {
			return err
		}

		f.log.WithFields(logrus.Fields{
			"tournament_id": tournamentID,
			"sessions":      len(sessions),
		}).Info("Tournament finalized")

		out = &TournamentResult{Rewards: summary}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// writeHeadToHeadRankings derives the final ordering from the tournament type
// strategy and upserts the ranking rows accumulated during play.
func (f *TournamentFinalizer) writeHeadToHeadRankings(tx *gorm.DB, tournament *models.Tournament, sessions []models.Session) error {
	type finalRank struct {
		userID int64
		rank   int
		points float64
	}
	var finals []finalRank

	switch tournament.TypeCode {
	case models.TypeLeague:
		for _, row := range ranking.LeagueRanking(sessions) {
			finals = append(finals, finalRank{row.UserID, row.Rank, float64(row.Points)})
		}
	case models.TypeKnockout:
		for _, row := range ranking.KnockoutRanking(sessions) {
			finals = append(finals, finalRank{row.UserID, row.Rank, float64(row.RoundReached)})
		}
	case models.TypeGroupKnockout:
		for _, row := range ranking.GroupKnockoutRanking(sessions) {
			finals = append(finals, finalRank{row.UserID, row.Rank, 0})
		}
	default:
		return utils.NewAppError(utils.ErrCodeUnknownScoringType,
			"Unknown tournament type code", tournament.TypeCode)
	}

	for _, fr := range finals {
		userID := uint(fr.userID)
		var row models.TournamentRanking
		err := tx.Where("tournament_id = ? AND user_id = ?", tournament.ID, userID).
			First(&row).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			row = models.TournamentRanking{
				TournamentID:    tournament.ID,
				UserID:          &userID,
				ParticipantType: models.ParticipantIndividual,
			}
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		rank := fr.rank
		updates := map[string]interface{}{"rank": rank}
		if fr.points != 0 {
			updates["points"] = fr.points
		}
		if err := tx.Model(&models.TournamentRanking{}).Where("id = ?", row.ID).
			Updates(updates).Error; err != nil {
			return err
		}
	}
	return nil
}
