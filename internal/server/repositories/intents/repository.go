package intents

import (
	"context"

	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, pi *models.PaymentIntent) (*models.PaymentIntent, error)
	Get(ctx context.Context, id string) (*models.PaymentIntent, error)
	// GetForUpdate locks the row until the surrounding transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.PaymentIntent, error)
	UpdateStatus(ctx context.Context, id string, status string) (*models.PaymentIntent, error)
}
