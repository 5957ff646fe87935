package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestOwnerID tests owner extraction from session metadata.
func TestOwnerID(t *testing.T) {
	s := &Session{
		Name: "default",
		Config: SessionConfig{
			Metadata: map[string]string{
				MetaUserID:       "user-123",
				MetaSessionTell:  "252615983417",
				MetaSessionEmail: "a@b.com",
			},
		},
	}

	assert.Equal(t, "user-123", s.OwnerID())
	assert.Equal(t, "252615983417", s.ContactTell())
	assert.Equal(t, "a@b.com", s.ContactEmail())
}

// TestOwnerID_NoMetadata tests sessions without metadata (created outside
// the dashboard) resolve to an empty owner.
func TestOwnerID_NoMetadata(t *testing.T) {
	s := &Session{Name: "orphan"}
	assert.Empty(t, s.OwnerID())
}

// TestPhoneNumber tests the "@c.us" suffix stripping.
func TestPhoneNumber(t *testing.T) {
	s := &Session{
		Status: StatusWorking,
		Me:     &Me{ID: "252615983417@c.us", PushName: "Abdi"},
	}
	assert.Equal(t, "252615983417", s.PhoneNumber())

	s.Me = nil
	assert.Empty(t, s.PhoneNumber())
}
