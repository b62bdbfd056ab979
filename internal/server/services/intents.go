// Package services contains the backend's business logic. IntentService
// owns the payment intent lifecycle the kiosk drives over HTTP:
// create, capture and cancel.
package services

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"strings"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/dbx"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
	"github.com/dmitrijs2005/paykiosk/internal/server/receipts"
	"github.com/dmitrijs2005/paykiosk/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

var currencyRe = regexp.MustCompile(`^[a-z]{3}$`)

// CreateIntentInput is the validated shape of a create_payment_intent form.
type CreateIntentInput struct {
	Amount          int64
	Currency        string
	Email           string
	ExtendedAuth    bool
	IncrementalAuth bool
	Metadata        map[string]string
}

type IntentService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	receipts    receipts.Archive
	logger      logging.Logger
}

func NewIntentService(db *sql.DB, m repomanager.RepositoryManager, a receipts.Archive, l logging.Logger) *IntentService {
	if a == nil {
		a = receipts.Nop{}
	}
	return &IntentService{
		db:          db,
		repomanager: m,
		receipts:    a,
		logger:      l.With("module", "intent_service"),
	}
}

// NewIntentID returns a fresh "pi_" prefixed id.
func NewIntentID() string {
	return "pi_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// Create validates in and stores a new intent awaiting a payment method.
// An empty currency falls back to common.DefaultCurrency.
func (s *IntentService) Create(ctx context.Context, in CreateIntentInput) (*models.PaymentIntent, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", common.ErrorInvalidArgument)
	}

	currency := strings.ToLower(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = strings.ToLower(common.DefaultCurrency)
	}
	if !currencyRe.MatchString(currency) {
		return nil, fmt.Errorf("%w: unsupported currency %q", common.ErrorInvalidArgument, in.Currency)
	}

	id := NewIntentID()
	secret, err := common.MakeClientSecret(id)
	if err != nil {
		return nil, common.ErrorInternal
	}

	pi := &models.PaymentIntent{
		ID:              id,
		ClientSecret:    secret,
		Amount:          in.Amount,
		Currency:        currency,
		Status:          models.StatusRequiresPaymentMethod,
		Email:           in.Email,
		ExtendedAuth:    in.ExtendedAuth,
		IncrementalAuth: in.IncrementalAuth,
		Metadata:        in.Metadata,
	}

	created, err := s.repomanager.Intents(s.db).Create(ctx, pi)
	if err != nil {
		return nil, fmt.Errorf("error creating payment intent: %w", err)
	}

	s.logger.Info(ctx, "payment intent created", "intent_id", id, "amount", in.Amount, "currency", currency)
	return created, nil
}

// Capture marks the intent succeeded and archives a receipt. Archive
// failures are logged; the capture itself stands.
func (s *IntentService) Capture(ctx context.Context, id string) (*models.PaymentIntent, error) {
	pi, err := s.transition(ctx, id, models.StatusSucceeded, (*models.PaymentIntent).Capturable)
	if err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "payment intent captured", "intent_id", id)

	if err := s.receipts.Archive(ctx, pi); err != nil {
		s.logger.Warn(ctx, "receipt archive failed", "intent_id", id, "error", err)
	}
	return pi, nil
}

// Cancel marks the intent canceled.
func (s *IntentService) Cancel(ctx context.Context, id string) (*models.PaymentIntent, error) {
	pi, err := s.transition(ctx, id, models.StatusCanceled, (*models.PaymentIntent).Cancelable)
	if err != nil {
		return nil, err
	}
	s.logger.Info(ctx, "payment intent canceled", "intent_id", id)
	return pi, nil
}

func (s *IntentService) transition(ctx context.Context, id, to string, allowed func(*models.PaymentIntent) bool) (*models.PaymentIntent, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: payment_intent_id is required", common.ErrorInvalidArgument)
	}

	var out *models.PaymentIntent
	err := dbx.WithTx(ctx, s.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		repo := s.repomanager.Intents(tx)

		pi, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !allowed(pi) {
			return fmt.Errorf("%w: %s is %s", common.ErrInvalidIntentState, id, pi.Status)
		}

		out, err = repo.UpdateStatus(ctx, id, to)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
