package rewards

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// Summary is what a distribution run (or an idempotent re-run) returns.
type Summary struct {
	TournamentID       uint                `json:"tournament_id"`
	AlreadyDistributed bool                `json:"already_distributed"`
	DistributedAt      time.Time           `json:"distributed_at"`
	TotalCredits       int                 `json:"total_credits"`
	TotalXP            int                 `json:"total_xp"`
	Items              []models.RewardItem `json:"items"`
}

// Orchestrator distributes credits, XP and badges exactly once per tournament.
type Orchestrator struct {
	log *logrus.Logger
}

func NewOrchestrator(log *logrus.Logger) *Orchestrator {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Orchestrator{log: log}
}

func summaryFromRow(row *models.RewardDistribution) *Summary {
	s := &Summary{
		TournamentID:       row.TournamentID,
		AlreadyDistributed: true,
		DistributedAt:      row.DistributedAt,
		TotalCredits:       row.TotalCredits,
		TotalXP:            row.TotalXP,
	}
	_ = json.Unmarshal(row.Items, &s.Items)
	return s
}

// Distribute pays out the reward policy over the final rankings inside tx.
// The pre-check plus the unique constraint on reward_distributions together
// enforce exactly-once payout under concurrent retries. Tied players each
// receive the full reward for their shared rank.
func (o *Orchestrator) Distribute(tx *gorm.DB, tournament *models.Tournament, actor uint) (*Summary, error) {
	var existing models.RewardDistribution
	err := tx.Where("tournament_id = ?", tournament.ID).First(&existing).Error
	if err == nil {
		return summaryFromRow(&existing), nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	var policy models.RewardPolicy
	if tournament.Config != nil {
		policy = tournament.Config.RewardPolicy
	}
	if len(policy) == 0 {
		o.log.WithField("tournament_id", tournament.ID).
			Info("No reward policy configured, recording empty distribution")
	}

	var rankings []models.TournamentRanking
	if err := tx.Where("tournament_id = ?", tournament.ID).
		Order("rank ASC").Find(&rankings).Error; err != nil {
		return nil, err
	}

	summary := &Summary{
		TournamentID:  tournament.ID,
		DistributedAt: time.Now().UTC(),
	}

	for _, r := range rankings {
		if r.UserID == nil || r.Rank == nil {
			continue
		}
		label := strconv.Itoa(*r.Rank)
		entry, ok := policy[label]
		if !ok {
			label = "participant"
			entry, ok = policy[label]
		}
		if !ok {
			continue
		}

		userID := *r.UserID
		if entry.Credits != 0 {
			if err := tx.Model(&models.User{}).Where("id = ?", userID).
				Update("credit_balance", gorm.Expr("credit_balance + ?", entry.Credits)).Error; err != nil {
				return nil, err
			}
			txn := models.CreditTransaction{
				UserID:      userID,
				Amount:      entry.Credits,
				Kind:        "tournament_reward",
				Description: fmt.Sprintf("Reward for rank %d in %s", *r.Rank, tournament.Name),
				LinkedType:  "tournament",
				LinkedID:    tournament.ID,
			}
			if err := tx.Create(&txn).Error; err != nil {
				return nil, err
			}
		}
		if entry.XP != 0 {
			xp := models.UserXP{UserID: userID, Specialization: tournament.Specialization}
			if err := tx.Where(&models.UserXP{UserID: userID, Specialization: tournament.Specialization}).
				FirstOrCreate(&xp).Error; err != nil {
				return nil, err
			}
			if err := tx.Model(&xp).Update("xp", gorm.Expr("xp + ?", entry.XP)).Error; err != nil {
				return nil, err
			}
		}
		if entry.Badge != "" {
			badge := models.Badge{
				UserID:       userID,
				TournamentID: tournament.ID,
				Rank:         *r.Rank,
				Label:        entry.Badge,
			}
			if err := tx.Create(&badge).Error; err != nil {
				return nil, err
			}
		}

		summary.TotalCredits += entry.Credits
		summary.TotalXP += entry.XP
		summary.Items = append(summary.Items, models.RewardItem{
			UserID:  int64(userID),
			Rank:    *r.Rank,
			Label:   label,
			Credits: entry.Credits,
			XP:      entry.XP,
			Badge:   entry.Badge,
		})
	}

	items, err := json.Marshal(summary.Items)
	if err != nil {
		return nil, err
	}
	row := models.RewardDistribution{
		TournamentID:  tournament.ID,
		DistributedAt: summary.DistributedAt,
		DistributedBy: actor,
		TotalCredits:  summary.TotalCredits,
		TotalXP:       summary.TotalXP,
		Items:         datatypes.JSON(items),
	}
	if err := tx.Create(&row).Error; err != nil {
		// A concurrent distributor beat us to the unique row; roll back and
		// let the caller re-read the winner's summary.
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, utils.NewAppError(utils.ErrCodeConflict,
				"Rewards already distributed concurrently",
				fmt.Sprintf("tournament_id=%d", tournament.ID))
		}
		return nil, err
	}

	audit := models.AuditLog{
		Action:       "tournament.rewards_distributed",
		UserID:       actor,
		ResourceType: "tournament",
		ResourceID:   tournament.ID,
		Details:      datatypes.JSON(items),
	}
	if err := tx.Create(&audit).Error; err != nil {
		return nil, err
	}

	o.log.WithFields(logrus.Fields{
		"tournament_id": tournament.ID,
		"total_credits": summary.TotalCredits,
		"total_xp":      summary.TotalXP,
		"recipients":    len(summary.Items),
	}).Info("Tournament rewards distributed")

	return summary, nil
}

// Existing returns the recorded distribution for a tournament, if any.
func (o *Orchestrator) Existing(db *gorm.DB, tournamentID uint) (*Summary, error) {
	var row models.RewardDistribution
	err := db.Where("tournament_id = ?", tournamentID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.NewAppError(utils.ErrCodeNotFound,
			"No reward distribution recorded", fmt.Sprintf("tournament_id=%d", tournamentID))
	}
	if err != nil {
		return nil, err
	}
	return summaryFromRow(&row), nil
}
