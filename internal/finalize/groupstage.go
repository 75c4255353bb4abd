package finalize

import (
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/internal/standings"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

// GroupStageResult reports what the group-stage close produced.
type GroupStageResult struct {
	AlreadyComplete bool                                 `json:"already_complete"`
	Snapshot        *models.EnrollmentSnapshot           `json:"snapshot"`
	SessionsSeeded  int                                  `json:"sessions_seeded"`
	GroupStandings  map[string][]models.GroupStandingRow `json:"group_standings"`
}

// GroupStageFinalizer closes the group stage: computes standings, seeds the
// first knockout round via the crossover bracket and writes the immutable
// enrollment snapshot. Rewards are never touched here.
type GroupStageFinalizer struct {
	db  *gorm.DB
	log *logrus.Logger
}

func NewGroupStageFinalizer(db *gorm.DB, log *logrus.Logger) *GroupStageFinalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &GroupStageFinalizer{db: db, log: log}
}

func (f *GroupStageFinalizer) Finalize(tournamentID uint, actor uint) (*GroupStageResult, error) {
	var out *GroupStageResult
	err := f.db.Transaction(func(tx *gorm.DB) error {
		var tournament models.Tournament
		if err := tx.First(&tournament, tournamentID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return utils.NewAppError(utils.ErrCodeNotFound, "Tournament not found", "")
			}
			return err
		}

		// Snapshot written once; later calls are answered from it.
		if tournament.EnrollmentSnapshot != nil &&
			tournament.EnrollmentSnapshot.Phase == "group_stage_complete" {
			out = &GroupStageResult{
				AlreadyComplete: true,
				Snapshot:        tournament.EnrollmentSnapshot,
				GroupStandings:  tournament.EnrollmentSnapshot.GroupStandings,
			}
			return nil
		}

		var sessions []models.Session
		if err := tx.Where("tournament_id = ?", tournamentID).Find(&sessions).Error; err != nil {
			return err
		}

		if incomplete := standings.IncompleteSessions(sessions); len(incomplete) > 0 {
			ids := make([]uint, 0, len(incomplete))
			for _, s := range incomplete {
				ids = append(ids, s.ID)
			}
			return utils.NewAppError(utils.ErrCodeIncompleteStage,
				"Group stage has unfinished matches",
				fmt.Sprintf("missing=%d", len(ids))).WithFields(ids)
		}

		groupStandings := standings.CalculateGroupStandings(sessions, nil)
		if len(groupStandings) == 0 {
			return utils.NewAppError(utils.ErrCodeInvalidResult,
				"Tournament has no group stage", "")
		}

		var knockout []*models.Session
		for i := range sessions {
			if sessions[i].Phase == models.PhaseKnockout {
				knockout = append(knockout, &sessions[i])
			}
		}
		seededCount, qualifiers := standings.SeedKnockoutRound(groupStandings, knockout)
		for _, s := range knockout {
			if s.Round != 1 {
				continue
			}
			if err := tx.Model(&models.Session{}).Where("id = ?", s.ID).
				Update("participant_user_ids", s.ParticipantUserIDs).Error; err != nil {
				return err
			}
		}

		topN := 0
		if len(groupStandings) > 0 {
			topN = len(qualifiers) / len(groupStandings)
		}
		snapshot := &models.EnrollmentSnapshot{
			Timestamp:             time.Now().UTC(),
			Phase:                 "group_stage_complete",
			GroupStandings:        groupStandings,
			QualifiedParticipants: qualifiers,
			QualificationRule:     fmt.Sprintf("top_%d_per_group", topN),
			TotalGroups:           len(groupStandings),
			TotalQualified:        len(qualifiers),
		}
		if err := tx.Model(&models.Tournament{}).Where("id = ?", tournamentID).
			Update("enrollment_snapshot", snapshot).Error; err != nil {
			return err
		}

		audit := models.AuditLog{
			Action:       "tournament.group_stage_finalized",
			UserID:       actor,
			ResourceType: "tournament",
			ResourceID:   tournamentID,
			Details:      datatypes.JSON(fmt.Sprintf(`{"sessions_seeded":%d,"qualifiers":%d}`, seededCount, len(qualifiers))),
		}
		if err := tx.Create(&audit).Error; err != nil {
			return err
		}

		f.log.WithFields(logrus.Fields{
			"tournament_id":   tournamentID,
			"groups":          len(groupStandings),
			"sessions_seeded": seededCount,
		}).Info("Group stage finalized")

		out = &GroupStageResult{
			Snapshot:       snapshot,
			SessionsSeeded: seededCount,
			GroupStandings: groupStandings,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
