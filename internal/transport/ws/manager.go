package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"learnlab-client/internal/domain"
	"learnlab-client/internal/notify"
)

// ErrClosed is returned by Connect after Close.
var ErrClosed = errors.New("ws: manager closed")

// Toast titles shown for connection lifecycle events.
const (
	TitleConnected       = "Connected"
	TitleConnectionLost  = "Connection Lost"
	TitleConnectionError = "Connection Error"
)

const lifecycleToastDuration = 3 * time.Second

// TokenSource supplies the bearer token put in the connection URL.
type TokenSource interface {
	AccessToken() (string, bool)
}

// Options tunes a Manager. Zero values fall back to the defaults.
type Options struct {
	PingInterval     time.Duration
	ReconnectDelay   time.Duration
	HandshakeTimeout time.Duration
	// OnUnauthorized runs when the handshake is refused with 401. The
	// manager stops reconnecting after it.
	OnUnauthorized func()
}

const (
	DefaultPingInterval   = 30 * time.Second
	DefaultReconnectDelay = 3 * time.Second
)

// Stats are the lifetime counters of a Manager.
type Stats struct {
	Connected  bool
	Attempts   int
	Reconnects int
}

// Manager owns the single notification socket of the process.
//
// It connects only while a user is present, shows the "Connected" toast once
// per Manager lifetime, keeps the socket alive with a periodic ping and
// schedules exactly one reconnect after every close it did not initiate.
type Manager struct {
	url     string
	opts    Options
	dialer  *websocket.Dialer
	tokens  TokenSource
	present func() bool
	toaster notify.Toaster
	log     zerolog.Logger

	writeMu sync.Mutex

	mu             sync.Mutex
	conn           *websocket.Conn
	pinger         *gocron.Scheduler
	reconnectTimer *time.Timer
	closed         bool
	announced      bool
	attempts       int
	reconnects     int
	readers        sync.WaitGroup
}

// NewManager builds a manager for wsURL (without the token query). present
// reports whether a user is signed in; nil means "whenever a token exists".
func NewManager(wsURL string, tokens TokenSource, present func() bool, toaster notify.Toaster, opts Options, log zerolog.Logger) *Manager {
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if present == nil {
		present = func() bool {
			_, ok := tokens.AccessToken()
			return ok
		}
	}
	return &Manager{
		url:     wsURL,
		opts:    opts,
		dialer:  &websocket.Dialer{HandshakeTimeout: opts.HandshakeTimeout},
		tokens:  tokens,
		present: present,
		toaster: toaster,
		log:     log.With().Str("component", "ws").Logger(),
	}
}

// Connected reports whether a socket is open.
func (m *Manager) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Stats{Connected: m.conn != nil, Attempts: m.attempts, Reconnects: m.reconnects}
}

// Connect opens the socket unless one is already live. A failed dial
// schedules a reconnect; only the very first attempt shows an error toast.
// A handshake refused with 401 is not retried.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.conn != nil {
		m.mu.Unlock()
		return nil
	}
	if !m.present() {
		m.mu.Unlock()
		return domain.ErrUnauthorized
	}
	token, ok := m.tokens.AccessToken()
	if !ok {
		m.mu.Unlock()
		return domain.ErrNoToken
	}
	first := m.attempts == 0
	m.attempts++
	m.mu.Unlock()

	endpoint, err := withToken(m.url, token)
	if err != nil {
		return err
	}
	m.log.Debug().Bool("first", first).Msg("connecting")
	conn, resp, err := m.dialer.DialContext(ctx, endpoint, nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil && resp != nil && resp.StatusCode == http.StatusUnauthorized {
		m.log.Warn().Msg("websocket token rejected, not reconnecting")
		if m.opts.OnUnauthorized != nil {
			m.opts.OnUnauthorized()
		}
		return fmt.Errorf("dial websocket: %w", domain.ErrUnauthorized)
	}
	if err != nil {
		m.log.Warn().Err(err).Msg("websocket dial failed")
		if first {
			m.toast(TitleConnectionError, "Failed to establish connection", domain.VariantDestructive)
		}
		m.scheduleReconnect()
		return fmt.Errorf("dial websocket: %w", err)
	}

	m.mu.Lock()
	if m.closed || m.conn != nil {
		m.mu.Unlock()
		_ = conn.Close()
		if m.Connected() {
			return nil
		}
		return ErrClosed
	}
	m.conn = conn
	announce := !m.announced
	m.announced = true
	pinger, err := m.startPinger(conn)
	if err != nil {
		m.log.Warn().Err(err).Msg("keepalive not scheduled")
	}
	m.pinger = pinger
	m.readers.Add(1)
	m.mu.Unlock()

	m.log.Info().Msg("websocket connected")
	if announce {
		m.toast(TitleConnected, "Real-time notifications enabled", domain.VariantDefault)
	}
	go m.readLoop(conn)
	return nil
}

// Close shuts the socket with a normal closure, cancels a pending
// reconnect and stops the keepalive. The manager cannot be reused.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
	conn := m.conn
	m.mu.Unlock()

	var err error
	if conn != nil {
		m.writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(time.Second))
		err = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "client closing"))
		m.writeMu.Unlock()
		// Give the server a moment to answer the close frame, then force it.
		done := make(chan struct{})
		go func() {
			m.readers.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			_ = conn.Close()
			<-done
		}
	}
	if errors.Is(err, websocket.ErrCloseSent) {
		err = nil
	}
	return err
}

func (m *Manager) readLoop(conn *websocket.Conn) {
	defer m.readers.Done()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			m.handleClose(conn, err)
			return
		}
		var msg domain.Notification
		if err := json.Unmarshal(data, &msg); err != nil {
			m.log.Warn().Err(err).Msg("malformed websocket message")
			continue
		}
		if msg.Type != domain.MessageNotification {
			continue
		}
		if m.toaster != nil {
			m.toaster.Toast(msg.Toast())
		}
	}
}

func (m *Manager) handleClose(conn *websocket.Conn, readErr error) {
	_ = conn.Close()

	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.conn = nil
	pinger := m.pinger
	m.pinger = nil
	closing := m.closed
	m.mu.Unlock()

	if pinger != nil {
		pinger.Stop()
	}

	if closing {
		m.log.Info().Msg("websocket closed")
		return
	}

	var closeErr *websocket.CloseError
	clean := errors.As(readErr, &closeErr) && closeErr.Code != websocket.CloseAbnormalClosure
	m.log.Warn().Err(readErr).Bool("clean", clean).Msg("websocket closed by peer")
	if !clean {
		m.toast(TitleConnectionLost, "Attempting to reconnect...", domain.VariantDestructive)
	}
	m.scheduleReconnect()
}

// scheduleReconnect replaces any pending reconnect with one that fires after
// the reconnect delay, provided a user is still present by then.
func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(m.opts.ReconnectDelay, func() {
		m.mu.Lock()
		if m.reconnectTimer != timer || m.closed {
			m.mu.Unlock()
			return
		}
		m.reconnectTimer = nil
		if !m.present() {
			m.mu.Unlock()
			m.log.Debug().Msg("no user in session, not reconnecting")
			return
		}
		m.reconnects++
		m.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), m.opts.HandshakeTimeout)
		defer cancel()
		if err := m.Connect(ctx); err != nil {
			m.log.Debug().Err(err).Msg("reconnect failed")
		}
	})
	m.reconnectTimer = timer
}

func (m *Manager) startPinger(conn *websocket.Conn) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	if _, err := s.Every(m.opts.PingInterval).WaitForSchedule().Do(m.ping, conn); err != nil {
		return nil, err
	}
	s.StartAsync()
	return s, nil
}

func (m *Manager) ping(conn *websocket.Conn) {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	_ = conn.SetWriteDeadline(time.Now().Add(m.opts.HandshakeTimeout))
	if err := conn.WriteJSON(domain.Notification{Type: domain.MessagePing}); err != nil {
		m.log.Debug().Err(err).Msg("ping failed")
	}
}

func (m *Manager) toast(title, description string, variant domain.Variant) {
	if m.toaster == nil {
		return
	}
	m.toaster.Toast(domain.Toast{
		Title:       title,
		Description: description,
		Variant:     variant,
		Duration:    lifecycleToastDuration,
	})
}

func withToken(raw, token string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse websocket url: %w", err)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
