// Package accounts maintains the local account projection of external
// identities. Each identity known to the identity service has at most one
// account row here, created lazily on first sign-in.
package accounts

import (
	"time"

	"github.com/google/uuid"
)

// Account is the local record bound to one external identity.
type Account struct {
	ID                 uuid.UUID `json:"id"`
	ExternalIdentityID uuid.UUID `json:"external_identity_id"`
	DisplayName        string    `json:"display_name"`
	AvatarURL          *string   `json:"avatar_url,omitempty"`
	Username           *string   `json:"username,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// SettingsUpdate is a partial update of mutable profile attributes. Nil
// fields are left untouched.
type SettingsUpdate struct {
	Username    *string `json:"username"`
	DisplayName *string `json:"display_name"`
	AvatarURL   *string `json:"avatar_url"`
}
