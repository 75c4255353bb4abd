package models

import "time"

// Enrollment request statuses
const (
	EnrollmentPending   = "PENDING"
	EnrollmentApproved  = "APPROVED"
	EnrollmentDeclined  = "DECLINED"
	EnrollmentCancelled = "CANCELLED"
)

// TournamentEnrollment is a roster entry. Only active approved rows may appear
// in generated sessions or submit results.
type TournamentEnrollment struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	TournamentID         uint       `gorm:"not null;index:idx_enrollment_tournament_user,unique" json:"tournament_id"`
	UserID               uint       `gorm:"not null;index:idx_enrollment_tournament_user,unique" json:"user_id"`
	RequestStatus        string     `gorm:"not null;default:PENDING" json:"request_status"`
	IsActive             bool       `gorm:"default:true" json:"is_active"`
	PaymentVerified      bool       `gorm:"default:false" json:"payment_verified"`
	ApprovedAt           *time.Time `json:"approved_at,omitempty"`
	PaymentReferenceCode string     `json:"payment_reference_code"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

func (TournamentEnrollment) TableName() string {
	return "tournament_enrollments"
}

func (e *TournamentEnrollment) IsEligible() bool {
	return e.IsActive && e.RequestStatus == EnrollmentApproved
}
