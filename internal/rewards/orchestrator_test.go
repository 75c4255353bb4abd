package rewards

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/utils"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{}, &models.UserXP{}, &models.CreditTransaction{}, &models.Badge{},
		&models.AuditLog{}, &models.Tournament{}, &models.TournamentRanking{},
		&models.RewardDistribution{},
	))
	return db
}

func seedRanked(t *testing.T, db *gorm.DB, policy models.RewardPolicy, ranks map[uint]int) *models.Tournament {
	t.Helper()
	tournament := models.Tournament{
		Name:           "Cup",
		Specialization: "football",
		Status:         models.StatusCompleted,
		Config:         &models.TournamentConfig{RewardPolicy: policy},
	}
	require.NoError(t, db.Create(&tournament).Error)

	for userID, rank := range ranks {
		user := models.User{ID: userID, Email: userEmail(userID), Name: "U"}
		require.NoError(t, db.Create(&user).Error)
		uid := userID
		r := rank
		require.NoError(t, db.Create(&models.TournamentRanking{
			TournamentID:    tournament.ID,
			UserID:          &uid,
			ParticipantType: models.ParticipantIndividual,
			Rank:            &r,
		}).Error)
	}
	return &tournament
}

func userEmail(id uint) string {
	return string(rune('a'+id)) + "@test.local"
}

func TestDistributePaysPolicy(t *testing.T) {
	db := testDB(t)
	policy := models.RewardPolicy{
		"1":           {Credits: 100, XP: 50, Badge: "gold"},
		"2":           {Credits: 50, XP: 30},
		"participant": {XP: 5},
	}
	tournament := seedRanked(t, db, policy, map[uint]int{1: 1, 2: 2, 3: 3})

	var summary *Summary
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := NewOrchestrator(nil).Distribute(tx, tournament, 99)
		summary = s
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, summary)
	assert.False(t, summary.AlreadyDistributed)
	assert.Equal(t, 150, summary.TotalCredits)
	assert.Equal(t, 85, summary.TotalXP)
	require.Len(t, summary.Items, 3)

	var winner models.User
	require.NoError(t, db.First(&winner, 1).Error)
	assert.Equal(t, 100, winner.CreditBalance)

	// Rank 3 has no entry and falls back to "participant".
	var third models.User
	require.NoError(t, db.First(&third, 3).Error)
	assert.Equal(t, 0, third.CreditBalance)
	var xp models.UserXP
	require.NoError(t, db.Where("user_id = ?", 3).First(&xp).Error)
	assert.Equal(t, 5, xp.XP)

	var badges []models.Badge
	require.NoError(t, db.Find(&badges).Error)
	require.Len(t, badges, 1)
	assert.Equal(t, uint(1), badges[0].UserID)
	assert.Equal(t, "gold", badges[0].Label)

	var txns []models.CreditTransaction
	require.NoError(t, db.Find(&txns).Error)
	assert.Len(t, txns, 2)
}

func TestDistributeTiedPlayersEachGetFullReward(t *testing.T) {
	db := testDB(t)
	policy := models.RewardPolicy{"1": {Credits: 100, XP: 10}}
	tournament := seedRanked(t, db, policy, map[uint]int{1: 1, 2: 1, 3: 3})

	var summary *Summary
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := NewOrchestrator(nil).Distribute(tx, tournament, 99)
		summary = s
		return err
	})
	require.NoError(t, err)

	// Both rank-1 players receive the full 100, not a split.
	assert.Equal(t, 200, summary.TotalCredits)
	for _, id := range []uint{1, 2} {
		var u models.User
		require.NoError(t, db.First(&u, id).Error)
		assert.Equal(t, 100, u.CreditBalance)
	}
}

func TestDistributeIsIdempotent(t *testing.T) {
	db := testDB(t)
	policy := models.RewardPolicy{"1": {Credits: 100}}
	tournament := seedRanked(t, db, policy, map[uint]int{1: 1})
	orchestrator := NewOrchestrator(nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		_, err := orchestrator.Distribute(tx, tournament, 99)
		return err
	})
	require.NoError(t, err)

	var replay *Summary
	err = db.Transaction(func(tx *gorm.DB) error {
		s, err := orchestrator.Distribute(tx, tournament, 99)
		replay = s
		return err
	})
	require.NoError(t, err)
	assert.True(t, replay.AlreadyDistributed)
	assert.Equal(t, 100, replay.TotalCredits)

	// Credits were paid exactly once.
	var winner models.User
	require.NoError(t, db.First(&winner, 1).Error)
	assert.Equal(t, 100, winner.CreditBalance)

	var rows int64
	db.Model(&models.RewardDistribution{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestDistributeWithoutPolicyRecordsEmptyLedger(t *testing.T) {
	db := testDB(t)
	tournament := seedRanked(t, db, nil, map[uint]int{1: 1})

	var summary *Summary
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := NewOrchestrator(nil).Distribute(tx, tournament, 99)
		summary = s
		return err
	})
	require.NoError(t, err)
	assert.Zero(t, summary.TotalCredits)
	assert.Empty(t, summary.Items)

	// The ledger row still exists so retries stay no-ops.
	var rows int64
	db.Model(&models.RewardDistribution{}).Count(&rows)
	assert.Equal(t, int64(1), rows)
}

func TestDuplicateLedgerRowIsTranslated(t *testing.T) {
	db := testDB(t)
	row := models.RewardDistribution{
		TournamentID:  7,
		DistributedAt: time.Now().UTC(),
		Items:         datatypes.JSON("[]"),
	}
	require.NoError(t, db.Create(&row).Error)

	dup := models.RewardDistribution{
		TournamentID:  7,
		DistributedAt: time.Now().UTC(),
		Items:         datatypes.JSON("[]"),
	}
	err := db.Create(&dup).Error
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey),
		"unique violation must surface as gorm.ErrDuplicatedKey, got %v", err)
}

func TestDistributeConcurrentLoserRollsBackWithConflict(t *testing.T) {
	db := testDB(t)
	policy := models.RewardPolicy{"1": {Credits: 100}}
	tournament := seedRanked(t, db, policy, map[uint]int{1: 1})

	// Slip a rival's ledger row in after the pre-check but before our own
	// insert, the interleaving a concurrent distributor produces.
	injected := false
	err := db.Callback().Create().Before("gorm:create").Register("rival_ledger_row", func(d *gorm.DB) {
		if injected || d.Statement.Table != "reward_distributions" {
			return
		}
		injected = true
		d.Session(&gorm.Session{NewDB: true}).Exec(
			"INSERT INTO reward_distributions (tournament_id, distributed_at, distributed_by, total_credits, total_xp, items, created_at) VALUES (?, ?, 0, 0, 0, '[]', ?)",
			tournament.ID, time.Now().UTC(), time.Now().UTC())
	})
	require.NoError(t, err)

	err = db.Transaction(func(tx *gorm.DB) error {
		_, err := NewOrchestrator(nil).Distribute(tx, tournament, 99)
		return err
	})
	require.Error(t, err)
	var appErr *utils.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, utils.ErrCodeConflict, appErr.Code)

	// The loser's credit writes must not survive the rollback.
	var winner models.User
	require.NoError(t, db.First(&winner, 1).Error)
	assert.Equal(t, 0, winner.CreditBalance)
	var txns int64
	db.Model(&models.CreditTransaction{}).Count(&txns)
	assert.Equal(t, int64(0), txns)
}

func TestExisting(t *testing.T) {
	db := testDB(t)
	orchestrator := NewOrchestrator(nil)

	_, err := orchestrator.Existing(db, 12345)
	require.Error(t, err)
	appErr, ok := err.(*utils.AppError)
	require.True(t, ok)
	assert.Equal(t, utils.ErrCodeNotFound, appErr.Code)

	policy := models.RewardPolicy{"1": {Credits: 10}}
	tournament := seedRanked(t, db, policy, map[uint]int{1: 1})
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		_, err := orchestrator.Distribute(tx, tournament, 1)
		return err
	}))

	summary, err := orchestrator.Existing(db, tournament.ID)
	require.NoError(t, err)
	assert.True(t, summary.AlreadyDistributed)
	assert.Equal(t, 10, summary.TotalCredits)
	require.Len(t, summary.Items, 1)
	assert.Equal(t, int64(1), summary.Items[0].UserID)
}
