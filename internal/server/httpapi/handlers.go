// Package httpapi exposes the backend's form-encoded HTTP endpoints the
// kiosk calls: connection tokens, locations and the payment intent
// lifecycle.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
	"github.com/dmitrijs2005/paykiosk/internal/netx"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
	"github.com/dmitrijs2005/paykiosk/internal/server/services"
)

const (
	formExtendedAuth    = "payment_method_options[card_present[request_extended_authorization]]"
	formIncrementalAuth = "payment_method_options[card_present[request_incremental_authorization_support]]"
	formIntentID        = "payment_intent_id"
)

type IntentService interface {
	Create(ctx context.Context, in services.CreateIntentInput) (*models.PaymentIntent, error)
	Capture(ctx context.Context, id string) (*models.PaymentIntent, error)
	Cancel(ctx context.Context, id string) (*models.PaymentIntent, error)
}

type LocationService interface {
	Create(ctx context.Context, displayName string, addr models.Address) (*models.Location, error)
}

type TokenService interface {
	ConnectionToken(ctx context.Context, locationID string) (string, error)
}

// Pinger reports storage health for /healthz. *sql.DB satisfies it.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Handler struct {
	intents   IntentService
	locations LocationService
	tokens    TokenService
	db        Pinger
	logger    logging.Logger
}

func NewHandler(i IntentService, l LocationService, t TokenService, db Pinger, logger logging.Logger) *Handler {
	return &Handler{intents: i, locations: l, tokens: t, db: db, logger: logger.With("module", "httpapi")}
}

// Router registers every endpoint on a fresh mux.Router.
func (h *Handler) Router() *mux.Router {
	r := mux.NewRouter()
	r.Use(h.logRequests)

	r.HandleFunc("/connection_token", h.connectionToken).Methods(http.MethodPost)
	r.HandleFunc("/create_location", h.createLocation).Methods(http.MethodPost)
	r.HandleFunc("/create_payment_intent", h.createPaymentIntent).Methods(http.MethodPost)
	r.HandleFunc("/capture_payment_intent", h.capturePaymentIntent).Methods(http.MethodPost)
	r.HandleFunc("/cancel_payment_intent", h.cancelPaymentIntent).Methods(http.MethodPost)
	r.HandleFunc("/healthz", h.healthz).Methods(http.MethodGet)

	return r
}

func (h *Handler) connectionToken(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	tok, err := h.tokens.ConnectionToken(r.Context(), r.PostForm.Get("location"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"secret": tok})
}

func (h *Handler) createLocation(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	f := r.PostForm
	loc, err := h.locations.Create(r.Context(), f.Get("display_name"), models.Address{
		Line1:      f.Get("address[line1]"),
		Line2:      f.Get("address[line2]"),
		City:       f.Get("address[city]"),
		PostalCode: f.Get("address[postal_code]"),
		State:      f.Get("address[state]"),
		Country:    f.Get("address[country]"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"id": loc.ID, "display_name": loc.DisplayName})
}

func (h *Handler) createPaymentIntent(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	f := r.PostForm

	amount, err := strconv.ParseInt(f.Get("amount"), 10, 64)
	if err != nil {
		netx.WriteError(w, http.StatusBadRequest, "amount must be an integer in minor units")
		return
	}

	pi, err := h.intents.Create(r.Context(), services.CreateIntentInput{
		Amount:          amount,
		Currency:        f.Get("currency"),
		Email:           f.Get("email"),
		ExtendedAuth:    formBool(f.Get(formExtendedAuth)),
		IncrementalAuth: formBool(f.Get(formIncrementalAuth)),
		Metadata:        metadata(f),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"intent": pi.ID, "secret": pi.ClientSecret})
}

func (h *Handler) capturePaymentIntent(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	pi, err := h.intents.Capture(r.Context(), r.PostForm.Get(formIntentID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"intent": pi.ID, "status": pi.Status})
}

func (h *Handler) cancelPaymentIntent(w http.ResponseWriter, r *http.Request) {
	if !h.parseForm(w, r) {
		return
	}
	pi, err := h.intents.Cancel(r.Context(), r.PostForm.Get(formIntentID))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"intent": pi.ID, "status": pi.Status})
}

func (h *Handler) healthz(w http.ResponseWriter, r *http.Request) {
	if err := h.db.PingContext(r.Context()); err != nil {
		h.logger.Warn(r.Context(), "health check failed", "error", err)
		netx.WriteError(w, http.StatusServiceUnavailable, "database unavailable")
		return
	}
	netx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseForm(w http.ResponseWriter, r *http.Request) bool {
	if err := r.ParseForm(); err != nil {
		netx.WriteError(w, http.StatusBadRequest, "malformed form body")
		return false
	}
	return true
}

// writeError maps service sentinels to status codes. Internal failures are
// logged and never echoed to the caller.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, common.ErrorInvalidArgument):
		netx.WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, common.ErrorNotFound):
		netx.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, common.ErrInvalidIntentState):
		netx.WriteError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		netx.WriteError(w, http.StatusInternalServerError, common.ErrorInternal.Error())
	}
}

// metadata collects metadata[key] form fields.
func metadata(f map[string][]string) map[string]string {
	out := map[string]string{}
	for k, v := range f {
		if !strings.HasPrefix(k, "metadata[") || !strings.HasSuffix(k, "]") || len(v) == 0 {
			continue
		}
		key := k[len("metadata[") : len(k)-1]
		if key == "" {
			continue
		}
		out[key] = v[0]
	}
	return out
}

func formBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
