package user

import (
	"time"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/enrollment"
)

// Enrollment statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

// StudentProfile holds the enrollment details of a student account.
type StudentProfile struct {
	UserID         string    `json:"user_id"`
	Email          string    `json:"email"` // from User
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Country        string    `json:"country"`
	DocumentType   string    `json:"document_type"`
	DocumentNumber string    `json:"document_number"`
	Nationality    string    `json:"nationality"`
	PhoneType      string    `json:"phone_type"`
	PhonePrefix    string    `json:"phone_prefix"`
	PhoneArea      string    `json:"phone_area"`
	PhoneNumber    string    `json:"phone_number"`
	StudyArea      string    `json:"study_area"`
	Modality       string    `json:"modality"`
	Program        string    `json:"program"`
	StartPeriod    string    `json:"start_period"`
	DNIKey         string    `json:"-"`
	DegreeKey      string    `json:"-"`
	Status         string    `json:"status"`
	ReviewedBy     string    `json:"reviewed_by,omitempty"`
	ReviewedAt     time.Time `json:"reviewed_at,omitempty"` // UTC
	ReviewNote     string    `json:"review_note,omitempty"`
	CreatedAt      time.Time `json:"created_at"` // UTC
	UpdatedAt      time.Time `json:"updated_at"` // UTC
}

func (sp StudentProfile) IsPending() bool {
	return sp.Status == StatusPending
}

// DocumentKey returns the storage key of the document in slot.
func (sp StudentProfile) DocumentKey(slot enrollment.Slot) string {
	switch slot {
	case enrollment.SlotIdentity:
		return sp.DNIKey
	case enrollment.SlotDegree:
		return sp.DegreeKey
	default:
		return ""
	}
}

type StudentFilter struct {
	Status string `query:"status"`
}

func (sf *StudentFilter) Clean() {
	sf.Status = core.CleanString(sf.Status, true /* lower */)
}
