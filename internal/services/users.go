package services

import (
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
)

// UserDirectory is the narrow read contract against the user store.
type UserDirectory struct {
	db *gorm.DB
}

func NewUserDirectory(db *gorm.DB) *UserDirectory {
	return &UserDirectory{db: db}
}

func (d *UserDirectory) GetUser(id uint) (*models.User, error) {
	var user models.User
	if err := d.db.First(&user, id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *UserDirectory) ListUsersByIDs(ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []models.User
	if err := d.db.Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// NamesByID returns a display-name lookup for standings output.
func (d *UserDirectory) NamesByID(ids []int64) map[int64]string {
	users, err := d.ListUsersByIDs(ids)
	if err != nil {
		return nil
	}
	names := make(map[int64]string, len(users))
	for _, u := range users {
		names[int64(u.ID)] = u.Name
	}
	return names
}
