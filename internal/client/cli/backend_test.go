package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/paykiosk/internal/client/client"
	"github.com/dmitrijs2005/paykiosk/internal/client/config"
	"github.com/dmitrijs2005/paykiosk/internal/client/services"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal/terminaltest"
	"github.com/dmitrijs2005/paykiosk/internal/common"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
	"github.com/dmitrijs2005/paykiosk/internal/server/httpapi"
	"github.com/dmitrijs2005/paykiosk/internal/server/models"
	backendsvc "github.com/dmitrijs2005/paykiosk/internal/server/services"
)

// memIntentService keeps backend intents in memory. Unknown ids are not
// found, as with the Postgres-backed service.
type memIntentService struct {
	mu      sync.Mutex
	intents map[string]*models.PaymentIntent
}

func newMemIntentService() *memIntentService {
	return &memIntentService{intents: make(map[string]*models.PaymentIntent)}
}

func (s *memIntentService) Create(_ context.Context, in backendsvc.CreateIntentInput) (*models.PaymentIntent, error) {
	if in.Amount <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", common.ErrorInvalidArgument)
	}
	id := backendsvc.NewIntentID()
	secret, err := common.MakeClientSecret(id)
	if err != nil {
		return nil, err
	}
	pi := &models.PaymentIntent{ID: id, ClientSecret: secret, Amount: in.Amount, Currency: in.Currency, Status: models.StatusRequiresPaymentMethod}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.intents[id] = pi
	return pi, nil
}

func (s *memIntentService) transition(id, to string) (*models.PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pi, ok := s.intents[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	if !pi.Capturable() {
		return nil, common.ErrInvalidIntentState
	}
	pi.Status = to
	out := *pi
	return &out, nil
}

func (s *memIntentService) Capture(_ context.Context, id string) (*models.PaymentIntent, error) {
	return s.transition(id, models.StatusSucceeded)
}

func (s *memIntentService) Cancel(_ context.Context, id string) (*models.PaymentIntent, error) {
	return s.transition(id, models.StatusCanceled)
}

func (s *memIntentService) all() []models.PaymentIntent {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PaymentIntent
	for _, pi := range s.intents {
		out = append(out, *pi)
	}
	return out
}

type okPinger struct{}

func (okPinger) PingContext(context.Context) error { return nil }

type simKiosk struct {
	app     *App
	sim     *terminal.Simulated
	intents *memIntentService
	out     *bytes.Buffer
}

// newSimKiosk runs the simulated reader against the backend HTTP handler.
func newSimKiosk(t *testing.T) *simKiosk {
	t.Helper()

	svc := newMemIntentService()
	h := httpapi.NewHandler(svc, nil, backendsvc.NewTokenService("test-secret", time.Minute), okPinger{}, logging.Discard())
	srv := httptest.NewServer(h.Router())
	t.Cleanup(srv.Close)

	var cfg config.Config
	cfg.LoadDefaults()
	cfg.LocationID = "tml_test"
	cfg.CloseDelay = 0
	cfg.OnlineCheckInterval = 0
	cfg.DiscoveryTimeout = time.Second

	backend := client.NewHTTPClient(srv.URL, 5*time.Second)
	listeners := terminal.NewListeners()
	sim := terminal.NewSimulated(backend, listeners, terminal.WithIntentRegistrar(intentRegistrar{backend: backend}))

	k := &simKiosk{sim: sim, intents: svc, out: &bytes.Buffer{}}
	k.app = NewApp(&cfg, logging.Discard(), Deps{
		Backend:   backend,
		Terminal:  sim,
		Listeners: listeners,
		Prefs:     &memPrefs{},
		Picker:    FirstReader{},
		In:        strings.NewReader(""),
		Out:       k.out,
		Closers:   []func() error{backend.Close},
	})
	t.Cleanup(func() { _ = k.app.Close() })
	return k
}

func TestPayAmount_LocalIntentIsCapturedByBackend(t *testing.T) {
	k := newSimKiosk(t)

	code, err := k.app.PayAmount(context.Background(), "12.50", "usd", PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)

	out := k.out.String()
	assert.Contains(t, out, "Captured PaymentIntent")
	assert.Contains(t, out, "Payment successful!")
	assert.NotContains(t, out, "Error capturing")

	stored := k.intents.all()
	require.Len(t, stored, 1)
	assert.Equal(t, int64(1250), stored[0].Amount)
	assert.Equal(t, models.StatusSucceeded, stored[0].Status)
}

func TestPayAmount_ThenRefundOnSimulatedReader(t *testing.T) {
	k := newSimKiosk(t)
	ctx := context.Background()

	code, err := k.app.PayAmount(ctx, "4.00", "usd", PayOptions{})
	require.NoError(t, err)
	require.Equal(t, 0, code)

	stored := k.intents.all()
	require.Len(t, stored, 1)

	code, err = k.app.Refund(ctx, stored[0].ID)
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, k.out.String(), "Processed Refund")
}

func TestEnsureConnected_RediscoversAfterDroppedConnection(t *testing.T) {
	k := newSimKiosk(t)
	ctx := context.Background()

	require.NoError(t, k.app.ensureConnected(ctx))
	assert.True(t, k.app.status.PaymentEnabled())

	k.sim.DropConnection()
	assert.False(t, k.app.status.PaymentEnabled())

	require.NoError(t, k.app.ensureConnected(ctx))
	assert.True(t, k.app.status.PaymentEnabled())

	out := k.out.String()
	assert.Equal(t, 2, strings.Count(out, "Searching for readers"))
	assert.Contains(t, out, "Reconnecting to saved reader")
}

func TestEnsureConnected_FollowsStatusHolder(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)
	require.NoError(t, f.app.ensureConnected(context.Background()))
	assert.Zero(t, f.fake.Count("DiscoverReaders"))

	f.fake.SetStatus(terminal.NotConnected)
	require.NoError(t, f.app.ensureConnected(context.Background()))
	assert.Equal(t, 1, f.fake.Count("DiscoverReaders"))
}

// stubStoredApp opens a fresh App for every command over one SQLite file,
// the way separate kiosk runs share the local database.
func stubStoredApp(t *testing.T) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "kiosk.db")

	orig := openApp
	openApp = func(ctx context.Context, cfg *config.Config, log logging.Logger) (*App, error) {
		repos, err := client.InitDatabase(ctx, dbPath)
		if err != nil {
			return nil, err
		}
		cfg.LocationID = "tml_test"
		cfg.CloseDelay = 0
		cfg.DiscoveryTimeout = time.Second

		listeners := terminal.NewListeners()
		fake := &terminaltest.Fake{DiscoverFn: announce(foundReaders), Listener: listeners}
		return NewApp(cfg, log, Deps{
			Backend:   &fakeBackend{},
			Terminal:  fake,
			Listeners: listeners,
			Prefs:     services.NewReaderPreferences(repos.DB),
			Intents:   repos.Intents,
			Picker:    FirstReader{},
			In:        strings.NewReader(""),
			Closers:   []func() error{repos.Close},
		}), nil
	}
	t.Cleanup(func() { openApp = orig })
}

func TestPayThenRefundCommands(t *testing.T) {
	stubStoredApp(t)

	r, _, err := execRoot(t, "pay", "3.10", "usd")
	require.NoError(t, err)
	require.Equal(t, 0, r.code)

	r, out, err := execRoot(t, "refund", "pi_local")
	require.NoError(t, err)
	assert.Equal(t, 0, r.code)
	assert.Contains(t, out, "$3.10")
	assert.Contains(t, out, "Processed Refund")
	assert.NotContains(t, out, "No matching PaymentIntent")
}

func TestSaveCardThenCancelCommands(t *testing.T) {
	stubStoredApp(t)

	r, _, err := execRoot(t, "save-card")
	require.NoError(t, err)
	require.Equal(t, 0, r.code)

	r, out, err := execRoot(t, "cancel", "seti_1")
	require.NoError(t, err)
	assert.Equal(t, 0, r.code)
	assert.Contains(t, out, "Cancelled SetupIntent")
}
