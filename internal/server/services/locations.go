package services

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

type LocationService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	logger      logging.Logger
}

func NewLocationService(db *sql.DB, m repomanager.RepositoryManager, l logging.Logger) *LocationService {
	return &LocationService{db: db, repomanager: m, logger: l.With("module", "location_service")}
}

// Create stores a location. Display name, first address line and country
// are required.
func (s *LocationService) Create(ctx context.Context, displayName string, addr models.Address) (*models.Location, error) {
	switch {
	case strings.TrimSpace(displayName) == "":
		return nil, fmt.Errorf("%w: display_name is required", common.ErrorInvalidArgument)
	case strings.TrimSpace(addr.Line1) == "":
		return nil, fmt.Errorf("%w: address[line1] is required", common.ErrorInvalidArgument)
	case strings.TrimSpace(addr.Country) == "":
		return nil, fmt.Errorf("%w: address[country] is required", common.ErrorInvalidArgument)
	}

	loc := &models.Location{
		ID:          "tml_" + strings.ReplaceAll(uuid.NewString(), "-", ""),
		DisplayName: displayName,
		Address:     addr,
	}

	created, err := s.repomanager.Locations(s.db).Create(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("error creating location: %w", err)
	}
	s.logger.Info(ctx, "location created", "location_id", created.ID)
	return created, nil
}
