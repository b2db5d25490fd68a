package models

import (
	"strconv"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// OAuthClient is a registered API client, e.g. the kitchen terminal used by
// the pizzaioli. Each client is bound to a User whose role ends up in the
// issued tokens.
type OAuthClient struct {
	ID         string `gorm:"primaryKey"`
	Secret     string `gorm:"not null"` // bcrypt hash
	Name       string
	Domain     string
	UserID     uint   // the staff account this client acts as
	Scopes     string // space-separated list of allowed scopes
	GrantTypes string // grants this client may use, e.g. client_credentials
	CreatedAt  time.Time
	UpdatedAt  time.Time
	DeletedAt  gorm.DeletedAt `gorm:"index"`
}

func (OAuthClient) TableName() string {
	return "oauth_clients"
}

// GetID implements oauth2.ClientInfo.
func (c *OAuthClient) GetID() string {
	return c.ID
}

// GetSecret implements oauth2.ClientInfo. Returns the stored bcrypt hash;
// verification happens through bcrypt, never by string comparison.
func (c *OAuthClient) GetSecret() string {
	return c.Secret
}

// GetDomain implements oauth2.ClientInfo.
func (c *OAuthClient) GetDomain() string {
	return c.Domain
}

// GetUserID implements oauth2.ClientInfo.
func (c *OAuthClient) GetUserID() string {
	if c.UserID == 0 {
		return ""
	}
	return strconv.FormatUint(uint64(c.UserID), 10)
}

// IsPublic implements oauth2.ClientInfo; all our clients are confidential.
func (c *OAuthClient) IsPublic() bool {
	return false
}

// VerifyPassword implements oauth2.ClientPasswordVerifier. The manager calls
// this instead of comparing GetSecret directly, so the bcrypt hash never has
// to match the presented secret byte for byte.
func (c *OAuthClient) VerifyPassword(secret string) bool {
	return bcrypt.CompareHashAndPassword([]byte(c.Secret), []byte(secret)) == nil
}
