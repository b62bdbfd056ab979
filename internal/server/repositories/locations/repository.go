package locations

import (
	"context"

	"github.com/dmitrijs2005/paykiosk/internal/server/models"
)

type Repository interface {
	Create(ctx context.Context, loc *models.Location) (*models.Location, error)
	Get(ctx context.Context, id string) (*models.Location, error)
}
