package models

import (
	"encoding/json"
	"time"
)

// RoutePassIssuance is the append-only audit record of a signed Route Pass.
// Rows are written best-effort at issuance and read by the denylist
// optimizer; they are never mutated.
type RoutePassIssuance struct {
	JTI           string    `gorm:"primaryKey;size:36" json:"jti"`
	UserID        string    `gorm:"index;not null;size:36" json:"user_id"`
	DeviceID      string    `gorm:"not null;size:36" json:"device_id"`
	AudiencesJSON string    `gorm:"type:text" json:"audiences_json"`
	IssuedAt      time.Time `gorm:"not null" json:"issued_at"`
	ExpiresAt     time.Time `gorm:"index;not null" json:"expires_at"`
}

// TableName returns the table name for RoutePassIssuance.
func (RoutePassIssuance) TableName() string {
	return "route_pass_issuances"
}

// SetAudiences stores the audience list as JSON.
func (i *RoutePassIssuance) SetAudiences(audiences []string) error {
	if audiences == nil {
		audiences = []string{}
	}
	raw, err := json.Marshal(audiences)
	if err != nil {
		return err
	}
	i.AudiencesJSON = string(raw)
	return nil
}

// Audiences decodes the stored audience list.
func (i *RoutePassIssuance) Audiences() ([]string, error) {
	if i.AudiencesJSON == "" {
		return []string{}, nil
	}
	var audiences []string
	if err := json.Unmarshal([]byte(i.AudiencesJSON), &audiences); err != nil {
		return nil, err
	}
	return audiences, nil
}
