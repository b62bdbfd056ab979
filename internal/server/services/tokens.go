package services

import (
	"context"
	"time"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/server/auth"
)

// TokenService mints connection tokens for card readers.
type TokenService struct {
	secret   []byte
	validity time.Duration
}

func NewTokenService(secretKey string, validity time.Duration) *TokenService {
	return &TokenService{secret: []byte(secretKey), validity: validity}
}

func (s *TokenService) ConnectionToken(ctx context.Context, locationID string) (string, error) {
	tok, err := auth.GenerateToken(locationID, s.secret, s.validity)
	if err != nil {
		return "", common.ErrorInternal
	}
	return tok, nil
}
