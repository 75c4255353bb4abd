package main

import (
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
	"github.com/academyhq/tournament-engine/pkg/config"
	"github.com/academyhq/tournament-engine/pkg/database"
)

func allModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.UserXP{},
		&models.CreditTransaction{},
		&models.Badge{},
		&models.AuditLog{},
		&models.Tournament{},
		&models.TournamentEnrollment{},
		&models.Session{},
		&models.TournamentRanking{},
		&models.RewardDistribution{},
		&models.StatusHistoryEntry{},
		&models.CampusScheduleConfig{},
	}
}

func main() {
	command := "up"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	db, err := database.NewConnection(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	switch command {
	case "up":
		if err := db.AutoMigrate(allModels()...); err != nil {
			logrus.Fatalf("Migration failed: %v", err)
		}
		logrus.Info("Migration complete")
	case "down":
		// Drop in reverse dependency order.
		tables := allModels()
		for i := len(tables) - 1; i >= 0; i-- {
			if err := db.Migrator().DropTable(tables[i]); err != nil {
				logrus.Fatalf("Drop failed: %v", err)
			}
		}
		logrus.Info("All tables dropped")
	case "seed":
		if err := db.AutoMigrate(allModels()...); err != nil {
			logrus.Fatalf("Migration failed: %v", err)
		}
		if err := seed(db.DB); err != nil {
			logrus.Fatalf("Seed failed: %v", err)
		}
		logrus.Info("Demo data seeded")
	default:
		logrus.Fatalf("Unknown command %q (want up, down or seed)", command)
	}
}

// seed loads a small demo world: a dozen students, an admin and one open
// tournament of each format.
func seed(db *gorm.DB) error {
	admin := models.User{Email: "admin@academy.local", Name: "Admin", Role: "admin"}
	if err := db.FirstOrCreate(&admin, models.User{Email: admin.Email}).Error; err != nil {
		return err
	}

	var students []models.User
	names := []string{"Anna", "Bence", "Csilla", "David", "Eszter", "Ferenc",
		"Greta", "Hanna", "Istvan", "Julia", "Kristof", "Lili"}
	for i, name := range names {
		u := models.User{
			Email: "student" + string(rune('a'+i)) + "@academy.local",
			Name:  name,
			Role:  "student",
		}
		if err := db.FirstOrCreate(&u, models.User{Email: u.Email}).Error; err != nil {
			return err
		}
		students = append(students, u)
	}

	now := time.Now().UTC()
	tournaments := []models.Tournament{
		{
			Name:        "Sprint Trials",
			Format:      models.FormatIndividualRanking,
			ScoringType: models.ScoringTimeBased,
			StartDate:   now.AddDate(0, 0, 7),
			EndDate:     now.AddDate(0, 0, 8),
			Status:      models.StatusReadyForEnrollment,
			Config: &models.TournamentConfig{
				TotalRounds: 3,
				RewardPolicy: models.RewardPolicy{
					"1":           {Credits: 100, XP: 50, Badge: "gold"},
					"2":           {Credits: 50, XP: 30, Badge: "silver"},
					"3":           {Credits: 25, XP: 20, Badge: "bronze"},
					"participant": {XP: 5},
				},
			},
		},
		{
			Name:      "Autumn League",
			Format:    models.FormatHeadToHead,
			TypeCode:  models.TypeLeague,
			StartDate: now.AddDate(0, 0, 14),
			EndDate:   now.AddDate(0, 0, 21),
			Status:    models.StatusReadyForEnrollment,
		},
		{
			Name:      "Champions Cup",
			Format:    models.FormatHeadToHead,
			TypeCode:  models.TypeGroupKnockout,
			StartDate: now.AddDate(0, 0, 30),
			EndDate:   now.AddDate(0, 0, 33),
			Status:    models.StatusDraft,
			Config:    &models.TournamentConfig{GroupCount: 2},
		},
	}
	for i := range tournaments {
		if err := db.FirstOrCreate(&tournaments[i],
			models.Tournament{Name: tournaments[i].Name}).Error; err != nil {
			return err
		}
	}

	// Everyone joins the first two tournaments pre-approved.
	approvedAt := now
	for _, t := range tournaments[:2] {
		for _, s := range students {
			enrollment := models.TournamentEnrollment{
				TournamentID:  t.ID,
				UserID:        s.ID,
				RequestStatus: models.EnrollmentApproved,
				IsActive:      true,
				ApprovedAt:    &approvedAt,
			}
			if err := db.FirstOrCreate(&enrollment, models.TournamentEnrollment{
				TournamentID: t.ID,
				UserID:       s.ID,
			}).Error; err != nil {
				return err
			}
		}
	}
	return nil
}
