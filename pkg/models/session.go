// Package models contains domain models for wapi-dashboard.
package models

import "strings"

// SessionStatus is the status the gateway reports for a WhatsApp session.
// The dashboard never transitions it directly; it only requests lifecycle
// actions and re-polls to observe the result.
type SessionStatus string

const (
	StatusStarting   SessionStatus = "STARTING"
	StatusScanQRCode SessionStatus = "SCAN_QR_CODE"
	StatusWorking    SessionStatus = "WORKING"
	StatusStopped    SessionStatus = "STOPPED"
	StatusFailed     SessionStatus = "FAILED"
)

// Metadata keys stored on every session at creation time. The gateway is not
// scoped per account, so MetaUserID is the only thing that ties a session to
// its owner.
const (
	MetaUserID       = "user.id"
	MetaUserEmail    = "user.email"
	MetaSessionEmail = "session.email"
	MetaSessionTell  = "session.tell"
)

// Me identifies the paired WhatsApp account. Present only while the session
// status is WORKING.
type Me struct {
	ID       string `json:"id"`
	PushName string `json:"pushName"`
}

// SessionConfig is the config block the gateway echoes back on reads.
type SessionConfig struct {
	Metadata map[string]string `json:"metadata"`
}

// Session is a WhatsApp session as reported by the gateway.
type Session struct {
	Name   string        `json:"name"`
	Status SessionStatus `json:"status"`
	Config SessionConfig `json:"config"`
	Me     *Me           `json:"me,omitempty"`
}

// OwnerID returns the identity-provider account id recorded in the session
// metadata, or "" when the session carries no metadata.
func (s *Session) OwnerID() string {
	return s.Config.Metadata[MetaUserID]
}

// ContactEmail returns the free-form contact email set at creation.
func (s *Session) ContactEmail() string {
	return s.Config.Metadata[MetaSessionEmail]
}

// ContactTell returns the free-form contact number set at creation.
func (s *Session) ContactTell() string {
	return s.Config.Metadata[MetaSessionTell]
}

// PhoneNumber returns the paired phone number without the "@c.us" suffix,
// or "" when the session is not paired.
func (s *Session) PhoneNumber() string {
	if s.Me == nil {
		return ""
	}
	return strings.TrimSuffix(s.Me.ID, "@c.us")
}
