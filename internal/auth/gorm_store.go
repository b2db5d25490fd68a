package auth

import (
	"context"
	"time"

	internalmodels "github.com/awesomepizza/gin-order-queue/internal/models"
	"github.com/go-oauth2/oauth2/v4"
	"github.com/go-oauth2/oauth2/v4/models"
	"gorm.io/gorm"
)

type GormClientStore struct {
	db *gorm.DB
}

func NewGormClientStore(db *gorm.DB) *GormClientStore {
	return &GormClientStore{db: db}
}

func (s *GormClientStore) GetByID(ctx context.Context, id string) (oauth2.ClientInfo, error) {
	var client internalmodels.OAuthClient
	if err := s.db.Where("id = ?", id).First(&client).Error; err != nil {
		return nil, err
	}
	return &client, nil
}

type GormTokenStore struct {
	db *gorm.DB
}

func NewGormTokenStore(db *gorm.DB) *GormTokenStore {
	return &GormTokenStore{db: db}
}

func (s *GormTokenStore) Create(ctx context.Context, info oauth2.TokenInfo) error {
	userId := info.GetUserID()
	refreshToken := info.GetRefresh()
	expiresAt := info.GetAccessExpiresIn()

	token := &internalmodels.OAuthToken{
		ClientID:     info.GetClientID(),
		UserID:       &userId,
		AccessToken:  info.GetAccess(),
		RefreshToken: &refreshToken,
		Scopes:       info.GetScope(),
		ExpiresAt:    time.Now().Add(expiresAt),
	}

	return s.db.Create(token).Error
}

func (s *GormTokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return s.db.Where("access_token = ?", access).Delete(&internalmodels.OAuthToken{}).Error
}

func (s *GormTokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return s.db.Where("refresh_token = ?", refresh).Delete(&internalmodels.OAuthToken{}).Error
}

func (s *GormTokenStore) GetByAccess(ctx context.Context, access string) (oauth2.TokenInfo, error) {
	var token internalmodels.OAuthToken
	if err := s.db.Where("access_token = ?", access).First(&token).Error; err != nil {
		return nil, err
	}
	return &models.Token{
		ClientID:        token.ClientID,
		UserID:          *token.UserID,
		Access:          token.AccessToken,
		Refresh:         *token.RefreshToken,
		AccessExpiresIn: time.Until(token.ExpiresAt),
		Scope:           token.Scopes,
	}, nil
}

func (s *GormTokenStore) GetByRefresh(ctx context.Context, refresh string) (oauth2.TokenInfo, error) {
	var token internalmodels.OAuthToken
	if err := s.db.Where("refresh_token = ?", refresh).First(&token).Error; err != nil {
		return nil, err
	}

	return &models.Token{
		ClientID:        token.ClientID,
		UserID:          *token.UserID,
		Access:          token.AccessToken,
		Refresh:         *token.RefreshToken,
		AccessExpiresIn: time.Until(token.ExpiresAt),
		Scope:           token.Scopes,
	}, nil
}

// Authorization codes are not issued; only the client-credentials grant is
// supported. The methods below exist to satisfy oauth2.TokenStore.

func (s *GormTokenStore) GetByCode(ctx context.Context, code string) (oauth2.TokenInfo, error) {
	return nil, gorm.ErrRecordNotFound
}

func (s *GormTokenStore) RemoveByCode(ctx context.Context, code string) error {
	return nil
}
