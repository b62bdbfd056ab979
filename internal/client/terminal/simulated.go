package terminal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dmitrijs2005/paykiosk/internal/common"
)

// Operation names accepted by WithFailure.
const (
	OpDiscover      = "discover"
	OpConnect       = "connect"
	OpDisconnect    = "disconnect"
	OpCreatePI      = "create_payment_intent"
	OpRetrievePI    = "retrieve_payment_intent"
	OpProcessPI     = "process_payment_intent"
	OpCancelPI      = "cancel_payment_intent"
	OpCreateSI      = "create_setup_intent"
	OpProcessSI     = "process_setup_intent"
	OpCancelSI      = "cancel_setup_intent"
	OpRefund        = "refund"
	OpInstallUpdate = "install_update"
)

// SimulatedOption configures a Simulated terminal.
type SimulatedOption func(*Simulated)

// WithReaders replaces the default set of simulated readers.
func WithReaders(readers ...Reader) SimulatedOption {
	return func(s *Simulated) { s.readers = append([]Reader(nil), readers...) }
}

// WithLatency delays every SDK call by d.
func WithLatency(d time.Duration) SimulatedOption {
	return func(s *Simulated) { s.latency = d }
}

// WithFailure makes every call of op fail with err.
func WithFailure(op string, err error) SimulatedOption {
	return func(s *Simulated) { s.failures[op] = err }
}

// WithIntentRegistrar makes CreatePaymentIntent register every intent with
// the backend and adopt the id and secret it assigns.
func WithIntentRegistrar(r IntentRegistrar) SimulatedOption {
	return func(s *Simulated) { s.registrar = r }
}

// WithUpdateAvailable makes InstallAvailableUpdate install version.
func WithUpdateAvailable(version string) SimulatedOption {
	return func(s *Simulated) { s.pendingUpdate = version }
}

// DefaultSimulatedReaders is the reader set the simulator reports when none
// is configured. The offline one never makes it past discovery filtering.
func DefaultSimulatedReaders() []Reader {
	return []Reader{
		{ID: "tmr_sim_wisepos", SerialNumber: "SIMULATOR-WPE-1", DeviceType: "wisepos_e", NetworkStatus: Online, SoftwareVersion: "2.20.1.0", BatteryLevel: 0.9},
		{SerialNumber: "SIMULATOR-M2-1", DeviceType: "stripe_m2", NetworkStatus: Unknown, SoftwareVersion: "2.01.00.17", BatteryLevel: 0.6},
		{ID: "tmr_sim_offline", SerialNumber: "SIMULATOR-S700-1", DeviceType: "stripe_s700", NetworkStatus: Offline},
	}
}

// Simulated is an in-process Terminal. It keeps created intents in memory
// and reports every state change to its Listeners.
type Simulated struct {
	tokens    TokenProvider
	registrar IntentRegistrar
	listeners Listener

	mu            sync.Mutex
	status        ConnectionStatus
	connected     *Reader
	readers       []Reader
	latency       time.Duration
	failures      map[string]error
	pendingUpdate string
	payments      map[string]PaymentIntent
	setups        map[string]SetupIntent
	busy          bool
}

// NewSimulated builds a simulated terminal. listeners may be nil.
func NewSimulated(tokens TokenProvider, listeners Listener, opts ...SimulatedOption) *Simulated {
	if listeners == nil {
		listeners = NopListener{}
	}
	s := &Simulated{
		tokens:    tokens,
		listeners: listeners,
		status:    NotConnected,
		readers:   DefaultSimulatedReaders(),
		failures:  make(map[string]error),
		payments:  make(map[string]PaymentIntent),
		setups:    make(map[string]SetupIntent),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

func (s *Simulated) ConnectionStatus() ConnectionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Simulated) ConnectedReader() (Reader, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return Reader{}, false
	}
	return *s.connected, true
}

// step waits for the configured latency and returns the injected failure
// for op, if any.
func (s *Simulated) step(ctx context.Context, op string) error {
	s.mu.Lock()
	latency := s.latency
	failure := s.failures[op]
	s.mu.Unlock()

	if latency > 0 {
		t := time.NewTimer(latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return errorFromContext(ctx.Err())
		case <-t.C:
		}
	} else if err := ctx.Err(); err != nil {
		return errorFromContext(err)
	}
	return failure
}

func (s *Simulated) setStatus(status ConnectionStatus) {
	s.mu.Lock()
	changed := s.status != status
	s.status = status
	s.mu.Unlock()

	if changed {
		s.listeners.OnConnectionStatusChange(status)
	}
}

func (s *Simulated) DiscoverReaders(ctx context.Context, cfg DiscoveryConfig, onUpdate func([]Reader)) error {
	if err := s.step(ctx, OpDiscover); err != nil {
		return err
	}

	s.mu.Lock()
	snapshot := make([]Reader, 0, len(s.readers))
	for _, r := range s.readers {
		if cfg.Method == USB && r.DeviceType != "stripe_m2" && r.DeviceType != "chipper_2x" {
			continue
		}
		snapshot = append(snapshot, r)
	}
	s.mu.Unlock()

	onUpdate(snapshot)

	<-ctx.Done()
	return errorFromContext(ctx.Err())
}

func (s *Simulated) ConnectReader(ctx context.Context, reader Reader, cfg ConnectionConfig) (Reader, error) {
	if cfg.LocationID == "" {
		return Reader{}, &Error{Code: CodeInvalidState, Message: "location id is required to connect"}
	}

	s.setStatus(Connecting)

	connected, err := s.connect(ctx, reader, cfg)
	if err != nil {
		s.setStatus(NotConnected)
		return Reader{}, err
	}

	s.mu.Lock()
	s.connected = &connected
	s.mu.Unlock()
	s.setStatus(Connected)

	return connected, nil
}

func (s *Simulated) connect(ctx context.Context, reader Reader, cfg ConnectionConfig) (Reader, error) {
	if s.tokens == nil {
		return Reader{}, &Error{Code: CodeConnectionToken, Message: "no connection token provider"}
	}
	token, err := s.tokens.FetchConnectionToken(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return Reader{}, errorFromContext(err)
		}
		return Reader{}, &Error{Code: CodeConnectionToken, Message: err.Error(), Err: err}
	}
	if err := checkConnectionToken(token); err != nil {
		return Reader{}, &Error{Code: CodeConnectionToken, Message: err.Error(), Err: err}
	}

	if err := s.step(ctx, OpConnect); err != nil {
		return Reader{}, err
	}

	if reader.NetworkStatus == Offline {
		return Reader{}, &Error{Code: CodeNetwork, Message: "reader is offline"}
	}

	reader.LocationID = cfg.LocationID
	if reader.ID == "" {
		reader.ID = "tmr_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
	}
	return reader, nil
}

// checkConnectionToken rejects tokens that are not JWTs or are already
// expired. The signature belongs to the backend and is not verified here.
func checkConnectionToken(token string) error {
	if token == "" {
		return common.ErrInvalidToken
	}
	claims := jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return fmt.Errorf("%w: %v", common.ErrInvalidToken, err)
	}
	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		return common.ErrTokenExpired
	}
	return nil
}

func (s *Simulated) DisconnectReader(ctx context.Context) error {
	if err := s.step(ctx, OpDisconnect); err != nil {
		return err
	}
	s.mu.Lock()
	s.connected = nil
	s.mu.Unlock()
	s.setStatus(NotConnected)
	return nil
}

// DropConnection simulates the reader going away without a disconnect call.
func (s *Simulated) DropConnection() {
	s.mu.Lock()
	r := s.connected
	s.connected = nil
	s.mu.Unlock()

	if r != nil {
		s.setStatus(NotConnected)
		s.listeners.OnUnexpectedDisconnect(*r)
	}
}

func (s *Simulated) requireReader() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected == nil {
		return &Error{Code: CodeNotConnected, Message: "no reader connected"}
	}
	return nil
}

// acquire marks the reader busy for the duration of a collect call.
func (s *Simulated) acquire() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busy {
		return &Error{Code: CodeReaderBusy, Message: "reader is busy"}
	}
	s.busy = true
	return nil
}

func (s *Simulated) release() {
	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
}

func newID(prefix string) string {
	return prefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:24]
}

func (s *Simulated) CreatePaymentIntent(ctx context.Context, params PaymentIntentParams) (PaymentIntent, error) {
	if err := s.step(ctx, OpCreatePI); err != nil {
		return PaymentIntent{}, err
	}
	if params.Amount <= 0 {
		return PaymentIntent{}, &Error{Code: CodeInvalidState, Message: "amount must be positive"}
	}

	id, secret, err := s.registerIntent(ctx, params)
	if err != nil {
		return PaymentIntent{}, err
	}

	pi := PaymentIntent{
		ID:           id,
		ClientSecret: secret,
		Amount:       params.Amount,
		Currency:     strings.ToLower(params.Currency),
		Status:       RequiresPaymentMethod,
		Metadata:     params.Metadata,
	}

	s.mu.Lock()
	s.payments[id] = pi
	s.mu.Unlock()

	return pi, nil
}

// registerIntent returns the id and client secret for a new intent. Without
// a registrar both are generated locally.
func (s *Simulated) registerIntent(ctx context.Context, params PaymentIntentParams) (string, string, error) {
	if s.registrar == nil {
		id := newID("pi_")
		secret, err := common.MakeClientSecret(id)
		if err != nil {
			return "", "", err
		}
		return id, secret, nil
	}

	id, secret, err := s.registrar.RegisterPaymentIntent(ctx, params)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", "", errorFromContext(err)
		}
		return "", "", &Error{Code: CodeNetwork, Message: "backend: " + err.Error(), Err: err}
	}

	fromSecret, ok := common.IntentIDFromSecret(secret)
	if !ok {
		return "", "", &Error{Code: CodeInvalidSecret, Message: "backend returned a malformed client secret"}
	}
	if id == "" {
		id = fromSecret
	}
	return id, secret, nil
}

func (s *Simulated) RetrievePaymentIntent(ctx context.Context, clientSecret string) (PaymentIntent, error) {
	if err := s.step(ctx, OpRetrievePI); err != nil {
		return PaymentIntent{}, err
	}

	id, ok := common.IntentIDFromSecret(clientSecret)
	if !ok {
		return PaymentIntent{}, &Error{Code: CodeInvalidSecret, Message: "malformed client secret"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if pi, ok := s.payments[id]; ok {
		if pi.ClientSecret != clientSecret {
			return PaymentIntent{}, &Error{Code: CodeInvalidSecret, Message: "client secret does not match"}
		}
		return pi, nil
	}

	// Intents created by the backend are first seen here. The amount is not
	// known to the reader; callers fill it in from their own request.
	pi := PaymentIntent{ID: id, ClientSecret: clientSecret, Status: RequiresPaymentMethod}
	s.payments[id] = pi
	return pi, nil
}

func (s *Simulated) ProcessPaymentIntent(ctx context.Context, intent PaymentIntent, cfg CollectConfig) (PaymentIntent, error) {
	if err := s.requireReader(); err != nil {
		return PaymentIntent{}, err
	}
	if intent.Status != RequiresPaymentMethod && intent.Status != RequiresConfirmation {
		return PaymentIntent{}, &Error{Code: CodeInvalidState, Message: fmt.Sprintf("cannot process intent in status %s", intent.Status)}
	}
	if err := s.acquire(); err != nil {
		return PaymentIntent{}, err
	}
	defer s.release()

	s.listeners.OnDisplayMessage("Insert, tap or swipe card")
	if err := s.step(ctx, OpProcessPI); err != nil {
		return PaymentIntent{}, err
	}
	s.listeners.OnDisplayMessage("Remove card")

	intent.Status = RequiresCapture
	s.mu.Lock()
	s.payments[intent.ID] = intent
	s.mu.Unlock()

	return intent, nil
}

func (s *Simulated) CancelPaymentIntent(ctx context.Context, intent PaymentIntent) (PaymentIntent, error) {
	if err := s.step(ctx, OpCancelPI); err != nil {
		return PaymentIntent{}, err
	}
	if intent.Status == Succeeded {
		return PaymentIntent{}, &Error{Code: CodeInvalidState, Message: "cannot cancel a succeeded intent"}
	}

	intent.Status = Canceled
	s.mu.Lock()
	s.payments[intent.ID] = intent
	s.mu.Unlock()
	return intent, nil
}

func (s *Simulated) CreateSetupIntent(ctx context.Context) (SetupIntent, error) {
	if err := s.step(ctx, OpCreateSI); err != nil {
		return SetupIntent{}, err
	}
	si := SetupIntent{ID: newID("seti_"), Status: RequiresPaymentMethod}

	s.mu.Lock()
	s.setups[si.ID] = si
	s.mu.Unlock()
	return si, nil
}

func (s *Simulated) ProcessSetupIntent(ctx context.Context, intent SetupIntent) (SetupIntent, error) {
	if err := s.requireReader(); err != nil {
		return SetupIntent{}, err
	}
	if err := s.acquire(); err != nil {
		return SetupIntent{}, err
	}
	defer s.release()

	s.listeners.OnDisplayMessage("Insert, tap or swipe card")
	if err := s.step(ctx, OpProcessSI); err != nil {
		return SetupIntent{}, err
	}

	intent.Status = Succeeded
	s.mu.Lock()
	s.setups[intent.ID] = intent
	s.mu.Unlock()
	return intent, nil
}

func (s *Simulated) CancelSetupIntent(ctx context.Context, intent SetupIntent) (SetupIntent, error) {
	if err := s.step(ctx, OpCancelSI); err != nil {
		return SetupIntent{}, err
	}
	intent.Status = Canceled
	s.mu.Lock()
	s.setups[intent.ID] = intent
	s.mu.Unlock()
	return intent, nil
}

func (s *Simulated) ProcessRefund(ctx context.Context, params RefundParams) (Refund, error) {
	if err := s.requireReader(); err != nil {
		return Refund{}, err
	}
	if params.Amount <= 0 {
		return Refund{}, &Error{Code: CodeInvalidState, Message: "refund amount must be positive"}
	}
	s.listeners.OnDisplayMessage("Insert, tap or swipe card to refund")
	if err := s.step(ctx, OpRefund); err != nil {
		return Refund{}, err
	}
	return Refund{
		ID:              newID("re_"),
		PaymentIntentID: params.PaymentIntentID,
		Amount:          params.Amount,
		Currency:        strings.ToLower(params.Currency),
		Status:          Succeeded,
	}, nil
}

func (s *Simulated) InstallAvailableUpdate(ctx context.Context) error {
	s.mu.Lock()
	var reader Reader
	if s.connected != nil {
		reader = *s.connected
	}
	version := s.pendingUpdate
	s.mu.Unlock()

	if err := s.requireReader(); err != nil {
		return err
	}
	if version == "" {
		return &Error{Code: CodeNoUpdate, Message: "reader software is up to date"}
	}

	s.listeners.OnUpdateStarted(reader)
	for _, p := range []float64{0.25, 0.5, 0.75, 1} {
		if err := s.step(ctx, OpInstallUpdate); err != nil {
			s.listeners.OnUpdateFinished(err)
			return err
		}
		s.listeners.OnUpdateProgress(p)
	}

	s.mu.Lock()
	if s.connected != nil {
		s.connected.SoftwareVersion = version
	}
	s.pendingUpdate = ""
	s.mu.Unlock()

	s.listeners.OnUpdateFinished(nil)
	return nil
}
