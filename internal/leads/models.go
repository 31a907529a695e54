package leads

import (
	"regexp"
	"time"
)

// Lead is a prospective customer contact. Every lead belongs to exactly
// one tenant. Phone is the natural dedup key within a tenant but is not
// hard-unique: repeat contact attempts create new rows on purpose, and
// merging is an admin task, not an automatic one.
type Lead struct {
	ID       string `json:"id" db:"id"`
	TenantID string `json:"tenant_id" db:"tenant_id"`

	FullName string `json:"full_name" db:"full_name"`
	Phone    string `json:"phone" db:"phone"`
	Email    string `json:"email,omitempty" db:"email"`

	// Message is the free-text inquiry or, for phone/sms leads, a short
	// description of the contact attempt.
	Message string `json:"message,omitempty" db:"message"`

	// ServiceType is the industry vertical the landing page sells.
	ServiceType string `json:"service_type,omitempty" db:"service_type"`

	Source Source `json:"source" db:"source"`
	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

type Source string

const (
	SourceWebsite  Source = "website"
	SourcePhone    Source = "phone"
	SourceSMS      Source = "sms"
	SourceReferral Source = "referral"
)

func ValidSource(s Source) bool {
	switch s {
	case SourceWebsite, SourcePhone, SourceSMS, SourceReferral:
		return true
	default:
		return false
	}
}

type Status string

const (
	StatusNew       Status = "new"
	StatusContacted Status = "contacted"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

func ValidStatus(s Status) bool {
	switch s {
	case StatusNew, StatusContacted, StatusQualified, StatusConverted, StatusLost:
		return true
	default:
		return false
	}
}

// phonePattern matches the intake contract: optional +, optional leading
// 1, then 10-14 digits.
var phonePattern = regexp.MustCompile(`^\+?1?\d{10,14}$`)

// ValidPhone reports whether s satisfies the intake phone contract.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(s)
}
