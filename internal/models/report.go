package models

import "time"

// ReportType is the complaint category.
type ReportType string

const (
	ReportSpam          ReportType = "spam"
	ReportInappropriate ReportType = "inappropriate_content"
	ReportCopyright     ReportType = "copyright_violation"
	ReportOther         ReportType = "other"
)

// Valid reports whether t is a known report type.
func (t ReportType) Valid() bool {
	switch t {
	case ReportSpam, ReportInappropriate, ReportCopyright, ReportOther:
		return true
	}
	return false
}

// ReportStatus is the moderation decision on a single complaint.
type ReportStatus string

const (
	ReportPending  ReportStatus = "pending"
	ReportRejected ReportStatus = "rejected"
	ReportAccepted ReportStatus = "accepted"
)

// Valid reports whether s is a known report status.
func (s ReportStatus) Valid() bool {
	switch s {
	case ReportPending, ReportRejected, ReportAccepted:
		return true
	}
	return false
}

// Report is one user's complaint against one media item. A unique index on
// (media_id, reporter_id) keeps a user from reporting the same item twice.
type Report struct {
	ID string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`

	MediaID    string `gorm:"not null;index;type:uuid" json:"media_id"`
	Media      *Media `gorm:"foreignKey:MediaID" json:"media,omitempty"`
	ReporterID string `gorm:"not null;index;type:uuid" json:"reporter_id"`
	Reporter   *User  `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`

	Type        ReportType `gorm:"type:text;not null" json:"report_type"`
	Description string     `gorm:"type:text;not null" json:"description"`

	Status     ReportStatus `gorm:"type:text;not null;default:pending" json:"status"`
	ReviewedBy *string      `gorm:"type:uuid" json:"reviewed_by"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
