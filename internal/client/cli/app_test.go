package cli

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/paykiosk/internal/client/client"
	"github.com/dmitrijs2005/paykiosk/internal/client/config"
	"github.com/dmitrijs2005/paykiosk/internal/client/connect"
	"github.com/dmitrijs2005/paykiosk/internal/client/services"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal"
	"github.com/dmitrijs2005/paykiosk/internal/client/terminal/terminaltest"
	"github.com/dmitrijs2005/paykiosk/internal/logging"
)

type fakeBackend struct {
	mu      sync.Mutex
	created []client.PaymentIntentRequest
	pingErr error
	closed  bool
}

func (b *fakeBackend) FetchConnectionToken(context.Context) (string, error) { return "tok", nil }
func (b *fakeBackend) CreateLocation(context.Context, client.LocationRequest) (string, error) {
	return "tml_1", nil
}

func (b *fakeBackend) CreatePaymentIntent(_ context.Context, req client.PaymentIntentRequest) (client.PaymentIntentCreation, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.created = append(b.created, req)
	return client.PaymentIntentCreation{IntentID: "pi_remote", Secret: "pi_remote_secret_1"}, nil
}

func (b *fakeBackend) CapturePaymentIntent(_ context.Context, id string) (client.CaptureResult, error) {
	return client.CaptureResult{IntentID: id, Status: "succeeded"}, nil
}

func (b *fakeBackend) CancelPaymentIntent(context.Context, string) error { return nil }

func (b *fakeBackend) Ping(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pingErr
}

func (b *fakeBackend) Close() error {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	return nil
}

type memPrefs struct {
	mu    sync.Mutex
	saved services.SavedReaderInfo
}

func (m *memPrefs) Save(_ context.Context, r terminal.Reader, method terminal.DiscoveryMethod, loc string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = services.SavedReaderInfo{ReaderID: r.ID, Serial: r.SerialNumber, DiscoveryMethod: method, LocationID: loc, DeviceType: r.DeviceType}
	return nil
}

func (m *memPrefs) Load(context.Context) (services.SavedReaderInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.saved, nil
}

func (m *memPrefs) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saved = services.SavedReaderInfo{}
	return nil
}

type pickFunc func([]terminal.Reader) (terminal.Reader, error)

func (f pickFunc) Pick(r []terminal.Reader) (terminal.Reader, error) { return f(r) }

var foundReaders = []terminal.Reader{
	{ID: "tmr_a", DeviceType: "wisepos_e", NetworkStatus: terminal.Online},
	{ID: "tmr_b", DeviceType: "stripe_m2", NetworkStatus: terminal.Online},
}

func announce(readers []terminal.Reader) func(context.Context, terminal.DiscoveryConfig, func([]terminal.Reader)) error {
	return func(ctx context.Context, _ terminal.DiscoveryConfig, onUpdate func([]terminal.Reader)) error {
		onUpdate(readers)
		<-ctx.Done()
		return ctx.Err()
	}
}

type fixture struct {
	app     *App
	fake    *terminaltest.Fake
	backend *fakeBackend
	prefs   *memPrefs
	out     *bytes.Buffer
}

func newFixture(t *testing.T, input string, mutate func(*config.Config)) *fixture {
	t.Helper()
	captureOutput(t)

	var cfg config.Config
	cfg.LoadDefaults()
	cfg.LocationID = "tml_test"
	cfg.CloseDelay = 0
	cfg.OnlineCheckInterval = 0
	cfg.DiscoveryTimeout = time.Second
	if mutate != nil {
		mutate(&cfg)
	}

	f := &fixture{
		fake:    &terminaltest.Fake{DiscoverFn: announce(foundReaders)},
		backend: &fakeBackend{},
		prefs:   &memPrefs{},
		out:     &bytes.Buffer{},
	}
	listeners := terminal.NewListeners()
	f.fake.Listener = listeners
	f.app = NewApp(&cfg, logging.Discard(), Deps{
		Backend:   f.backend,
		Terminal:  f.fake,
		Listeners: listeners,
		Prefs:     f.prefs,
		Picker:    FirstReader{},
		In:        strings.NewReader(input),
		Out:       f.out,
		Closers:   []func() error{f.backend.Close},
	})
	t.Cleanup(func() { _ = f.app.Close() })
	return f
}

func TestRun_DeepLinkPaysThroughBackend(t *testing.T) {
	f := newFixture(t, "", nil)

	code := f.app.Run(context.Background(), "kiosk://pay?amount=12.50&currency=cad&id=abc", PayOptions{SkipTipping: true})

	assert.Equal(t, 0, code)
	require.Len(t, f.backend.created, 1)
	assert.Equal(t, int64(1250), f.backend.created[0].Amount)
	assert.Equal(t, "cad", f.backend.created[0].Currency)
	assert.Equal(t, "abc", f.backend.created[0].OrderID)

	out := f.out.String()
	assert.Contains(t, out, "$12.50")
	assert.Contains(t, out, "Payment successful!")
	assert.Contains(t, out, "Connected to tmr_a")

	_, pending := f.app.inbox.Current()
	assert.False(t, pending, "deep link cleared after closing")

	saved, _ := f.prefs.Load(context.Background())
	assert.Equal(t, "tmr_a", saved.ReaderID)
}

func TestRun_WithoutDeepLinkOpensIdlePrompt(t *testing.T) {
	f := newFixture(t, "exit\n", nil)

	code := f.app.Run(context.Background(), "", PayOptions{})

	assert.Equal(t, 0, code)
	assert.Empty(t, f.backend.created)
	assert.Equal(t, 1, f.fake.Count("ConnectReader"))
}

func TestRun_InvalidDeepLinkIsIgnored(t *testing.T) {
	f := newFixture(t, "exit\n", nil)

	code := f.app.Run(context.Background(), "kiosk://pay?amount=abc", PayOptions{})

	assert.Equal(t, 0, code)
	assert.Empty(t, f.backend.created)
}

func TestRun_AlreadyConnectedSkipsDiscovery(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)

	code := f.app.Run(context.Background(), "kiosk://pay?amount=1", PayOptions{})

	assert.Equal(t, 0, code)
	assert.Zero(t, f.fake.Count("DiscoverReaders"))
}

func TestRun_LocationNotConfigured(t *testing.T) {
	f := newFixture(t, "", func(c *config.Config) { c.LocationID = "" })

	code := f.app.Run(context.Background(), "kiosk://pay?amount=1", PayOptions{})

	assert.Equal(t, 1, code)
	assert.Zero(t, f.fake.Count("ConnectReader"))
	assert.Contains(t, f.out.String(), "Error:")
}

func TestEnsureConnected_DiscoveryTimeout(t *testing.T) {
	f := newFixture(t, "", func(c *config.Config) { c.DiscoveryTimeout = 30 * time.Millisecond })
	f.fake.DiscoverFn = nil

	err := f.app.ensureConnected(context.Background())
	assert.ErrorIs(t, err, ErrNoReaders)
}

func TestEnsureConnected_DiscoveryFailure(t *testing.T) {
	f := newFixture(t, "", nil)
	boom := &terminal.Error{Code: terminal.CodeNetwork, Message: "bluetooth off"}
	f.fake.DiscoverFn = func(context.Context, terminal.DiscoveryConfig, func([]terminal.Reader)) error { return boom }

	err := f.app.ensureConnected(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestEnsureConnected_RetriesFailedConnects(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.ConnectFn = func(context.Context, terminal.Reader, terminal.ConnectionConfig) (terminal.Reader, error) {
		return terminal.Reader{}, &terminal.Error{Code: terminal.CodeNetwork, Message: "reader is offline"}
	}

	err := f.app.ensureConnected(context.Background())

	var cerr *connect.ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, maxConnectAttempts, f.fake.Count("ConnectReader"))
	assert.Contains(t, f.out.String(), "Failed to connect: reader is offline")
}

func TestEnsureConnected_PrefersSavedReader(t *testing.T) {
	f := newFixture(t, "", nil)
	f.prefs.saved = services.SavedReaderInfo{ReaderID: "tmr_b"}
	f.app.picker = pickFunc(func([]terminal.Reader) (terminal.Reader, error) {
		return terminal.Reader{}, errors.New("picker must not be asked")
	})

	require.NoError(t, f.app.ensureConnected(context.Background()))
	assert.Contains(t, f.out.String(), "Reconnecting to saved reader tmr_b")
}

func TestPayAmount(t *testing.T) {
	f := newFixture(t, "", nil)

	code, err := f.app.PayAmount(context.Background(), "7.25", "CAD", PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "$7.25")
	assert.Empty(t, f.backend.created, "manual payments create the intent on the reader")

	_, err = f.app.PayAmount(context.Background(), "abc", "", PayOptions{})
	assert.Error(t, err)
}

func TestFollow_CancelOnContextEnd(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)
	entered := make(chan struct{})
	f.fake.ProcessPIFn = func(ctx context.Context, pi terminal.PaymentIntent, _ terminal.CollectConfig) (terminal.PaymentIntent, error) {
		close(entered)
		<-ctx.Done()
		return pi, ctx.Err()
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-entered
		cancel()
	}()

	code, err := f.app.PayAmount(ctx, "1", "usd", PayOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, code)
	assert.Contains(t, f.out.String(), "Payment canceled.")
}

func TestRefundAndCancel_Unknown(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)

	code, err := f.app.Refund(context.Background(), "pi_nope")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	code, err = f.app.CancelTransaction(context.Background(), "pi_nope")
	require.NoError(t, err)
	assert.Equal(t, 1, code)

	out := f.out.String()
	assert.Contains(t, out, "No matching PaymentIntent found to refund")
	assert.Contains(t, out, "No matching PaymentIntent or SetupIntent found to cancel")
}

func TestSaveCard(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)

	code, err := f.app.SaveCard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "Processed SetupIntent")
}

func TestUpdate(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)

	code, err := f.app.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "Update installed")

	f.fake.InstallUpdateFn = func(context.Context) error {
		return &terminal.Error{Code: terminal.CodeNoUpdate}
	}
	code, err = f.app.Update(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, code)
	assert.Contains(t, f.out.String(), "up to date")
}

func TestDisconnectAndForget(t *testing.T) {
	f := newFixture(t, "", nil)
	f.fake.SetStatus(terminal.Connected)
	f.prefs.saved = services.SavedReaderInfo{ReaderID: "tmr_a"}

	require.NoError(t, f.app.Disconnect(context.Background()))
	assert.Equal(t, terminal.NotConnected, f.fake.ConnectionStatus())
	assert.True(t, f.prefs.saved.Empty())

	f.prefs.saved = services.SavedReaderInfo{ReaderID: "tmr_a"}
	require.NoError(t, f.app.ForgetReader(context.Background()))
	assert.True(t, f.prefs.saved.Empty())
}

func TestCloseAfterDelay_Once(t *testing.T) {
	f := newFixture(t, "", func(c *config.Config) { c.CloseDelay = 20 * time.Millisecond })

	start := time.Now()
	f.app.closeAfterDelay(context.Background())
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)

	start = time.Now()
	f.app.closeAfterDelay(context.Background())
	assert.Less(t, time.Since(start), 20*time.Millisecond, "second close is a no-op")
}

func TestCheckOnline(t *testing.T) {
	f := newFixture(t, "", nil)
	ctx := context.Background()

	f.app.checkOnline(ctx)
	assert.Equal(t, ModeOnline, f.app.mode())
	assert.Equal(t, "(not_connected online)", f.app.getStatus())

	f.backend.mu.Lock()
	f.backend.pingErr = client.ErrUnavailable
	f.backend.mu.Unlock()

	f.app.checkOnline(ctx)
	assert.Equal(t, ModeOffline, f.app.mode())
}

func TestClose(t *testing.T) {
	f := newFixture(t, "", nil)
	require.NoError(t, f.app.Close())
	assert.True(t, f.backend.closed)
}
