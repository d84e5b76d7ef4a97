// internal/model/lead.go
package model

import "github.com/google/uuid"

// Lead is an audience record. The engine only reads identity, the two
// qualification attributes (stage, source) and the per-channel contact
// addresses; everything else about a lead belongs to the wider CRM.
type Lead struct {
	ID        uuid.UUID `db:"id" json:"id"`
	FirstName string    `db:"first_name" json:"first_name"`
	LastName  string    `db:"last_name" json:"last_name"`
	Email     string    `db:"email" json:"email"`
	Phone     string    `db:"phone" json:"phone"`
	Stage     string    `db:"stage" json:"stage"`
	Source    string    `db:"source" json:"source"`
}

// Address returns the lead's contact address for the given channel, or ""
// if the lead has none.
func (l *Lead) Address(channel string) string {
	switch channel {
	case ChannelEmail:
		return l.Email
	case ChannelChat:
		return l.Phone
	}
	return ""
}

// LeadAttributes carries the qualification attributes the criteria monitor
// re-checks after a lead update.
type LeadAttributes struct {
	Stage  string `json:"stage"`
	Source string `json:"source"`
}
