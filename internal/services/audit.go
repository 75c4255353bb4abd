package services

import (
	"encoding/json"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/academyhq/tournament-engine/internal/models"
)

// AuditService writes audit rows; fire-and-forget inside the caller's
// transaction, a failed row never aborts the business write.
type AuditService struct{}

func NewAuditService() *AuditService {
	return &AuditService{}
}

func (s *AuditService) Log(tx *gorm.DB, action string, userID uint, resourceType string, resourceID uint, details interface{}) {
	var blob datatypes.JSON
	if details != nil {
		if data, err := json.Marshal(details); err == nil {
			blob = datatypes.JSON(data)
		}
	}
	entry := models.AuditLog{
		Action:       action,
		UserID:       userID,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		Details:      blob,
	}
	if err := tx.Create(&entry).Error; err != nil {
		logrus.Warnf("Failed to write audit log %s: %v", action, err)
	}
}
