// Package channel keeps the websocket connection to the orchestration server:
// connection state, reconnection with backoff, keepalive, the auto-connect
// monitor, correlated calls and the event bus every inbound frame goes through.
package channel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/entrhq/tabwire/pkg/config"
	"github.com/entrhq/tabwire/pkg/metrics"
	"github.com/entrhq/tabwire/pkg/types"
)

// Preferences persists the auto-connect choice across restarts.
// config.ChannelPreferences implements it.
type Preferences interface {
	AutoConnect() bool
	SetAutoConnect(enabled bool) error
}

type memoryPreferences struct {
	mu      sync.Mutex
	enabled bool
}

func (p *memoryPreferences) AutoConnect() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *memoryPreferences) SetAutoConnect(enabled bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
	return nil
}

// StateChange is the payload of the local state_changed event.
type StateChange struct {
	From State `json:"from"`
	To   State `json:"to"`
}

// ReconnectExhausted is the payload of max_reconnect_attempts_reached.
type ReconnectExhausted struct {
	Attempts int `json:"attempts"`
}

// Manager owns the connection to the server.
//
// Transport errors never leave the manager: they change the state, publish a
// connection event and schedule a reconnect. Handlers registered with Subscribe
// run on the manager's goroutines and must not call Shutdown.
type Manager struct {
	cfg       config.ChannelSettings
	transport Transport
	prefs     Preferences
	logger    *zap.Logger
	metrics   *metrics.Collector
	bus       *bus
	pending   *pendingTable

	life context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu               sync.Mutex
	state            State
	conn             Conn
	connCancel       context.CancelFunc
	dialing          bool
	generation       uint64
	attempts         int
	exhausted        bool
	userDisconnected bool
	autoConnect      bool
	monitorCancel    context.CancelFunc
	reconnectTimer   *time.Timer
	timerSeq         uint64
	lastErr          error
	agentRunning     bool
	started          bool
	closed           bool
	stopWatch        func() bool
	outbox           []types.Frame
}

// NewManager builds a manager. A nil transport dials websockets, nil prefs keep
// the preference in memory seeded from cfg.AutoConnect, a nil logger discards and
// a nil collector records nothing.
func NewManager(cfg config.ChannelSettings, transport Transport, prefs Preferences, logger *zap.Logger, collector *metrics.Collector) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "channel"))
	if transport == nil {
		transport = WebSocketTransport{}
	}
	if prefs == nil {
		prefs = &memoryPreferences{enabled: cfg.AutoConnect}
	}

	life, stop := context.WithCancel(context.Background())
	m := &Manager{
		cfg:         cfg,
		transport:   transport,
		prefs:       prefs,
		logger:      logger,
		metrics:     collector,
		bus:         newBus(logger),
		life:        life,
		stop:        stop,
		state:       StateDisconnected,
		autoConnect: prefs.AutoConnect(),
	}
	m.pending = newPendingTable(logger, func(spec CallSpec) {
		collector.RecordCallTimeout(spec.name())
	})
	collector.SetChannelState(string(StateDisconnected))
	return m
}

// Start begins operation: when auto-connect is enabled it connects and starts the
// monitor. The manager shuts down when ctx is done.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	if m.started || m.closed {
		m.mu.Unlock()
		return
	}
	m.started = true
	m.stopWatch = context.AfterFunc(ctx, m.Shutdown)
	auto := m.autoConnect
	if auto {
		m.startMonitorLocked()
		m.wg.Add(1)
	}
	m.mu.Unlock()

	m.logger.Info("channel manager started",
		zap.String("url", m.cfg.ServerURL),
		zap.Bool("auto_connect", auto))

	if auto {
		go func() {
			defer m.wg.Done()
			_ = m.connect(m.life)
		}()
	}
}

// Shutdown closes the connection, stops every background goroutine and fails the
// pending calls with ErrClosed. It is safe to call more than once.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.generation++
	m.stopReconnectTimerLocked()
	m.stopMonitorLocked()
	conn := m.conn
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	stopWatch := m.stopWatch
	m.flushUnlock()

	if stopWatch != nil {
		stopWatch()
	}
	m.stop()
	if conn != nil {
		_ = conn.Close()
	}
	if n := m.pending.failAll(ErrClosed); n > 0 {
		m.logger.Info("failed pending calls on shutdown", zap.Int("count", n))
	}
	m.wg.Wait()
	m.logger.Info("channel manager stopped")
}

// Connect opens the connection if it is not open or opening. It clears a previous
// user disconnect and resets the reconnect budget. A failed dial is also reported
// as a connection_error event and followed by a scheduled reconnect.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.userDisconnected = false
	m.attempts = 0
	m.exhausted = false
	m.mu.Unlock()
	return m.connect(ctx)
}

func (m *Manager) connect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.state == StateConnected || m.dialing {
		m.mu.Unlock()
		return nil
	}
	m.dialing = true
	m.stopReconnectTimerLocked()
	if m.state != StateReconnecting {
		m.setStateLocked(StateConnecting)
	}
	gen := m.generation
	attempt := m.attempts
	url := m.cfg.ServerURL
	m.flushUnlock()

	m.logger.Info("connecting", zap.String("url", url), zap.Int("attempt", attempt))

	dialCtx, cancel := context.WithTimeout(ctx, m.cfg.DialTimeout)
	conn, err := m.transport.Dial(dialCtx, url)
	cancel()

	m.mu.Lock()
	m.dialing = false
	if m.closed || gen != m.generation {
		closed := m.closed
		m.flushUnlock()
		if conn != nil {
			_ = conn.Close()
		}
		if closed {
			return ErrClosed
		}
		return ErrDisconnected
	}

	if err != nil {
		m.lastErr = err
		m.emitLocked(types.EventConnectionError, types.ConnectionError{Error: err.Error()})
		m.scheduleReconnectLocked()
		m.flushUnlock()
		m.logger.Warn("connection failed", zap.String("url", url), zap.Error(err))
		return fmt.Errorf("connect %s: %w", url, err)
	}

	connCtx, connCancel := context.WithCancel(m.life)
	m.conn = conn
	m.connCancel = connCancel
	m.attempts = 0
	m.exhausted = false
	m.lastErr = nil
	m.setStateLocked(StateConnected)
	m.emitLocked(types.EventConnectionStatus, types.ConnectionStatus{Connected: true})
	m.wg.Add(2)
	go m.readLoop(connCtx, conn)
	go m.keepalive(connCtx, conn)
	m.flushUnlock()

	m.logger.Info("connected", zap.String("url", url))
	return nil
}

// Disconnect closes the connection on the user's behalf. Automatic reconnection
// and the monitor stay quiet until the next Connect, and pending calls fail with
// ErrDisconnected.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.userDisconnected = true
	m.generation++
	m.stopReconnectTimerLocked()
	conn := m.conn
	m.teardownLocked()
	m.setStateLocked(StateDisconnected)
	if conn != nil {
		m.emitLocked(types.EventConnectionStatus, types.ConnectionStatus{Connected: false, Reason: "client disconnect"})
	}
	m.flushUnlock()

	if conn != nil {
		_ = conn.Close()
	}
	n := m.pending.failAll(ErrDisconnected)
	m.logger.Info("disconnected by user", zap.Int("failed_calls", n))
}

// EnableAutoConnect turns the monitor on, persists the choice and connects if needed.
// The returned error only reports a failure to persist the preference.
func (m *Manager) EnableAutoConnect(ctx context.Context) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.autoConnect = true
	m.startMonitorLocked()
	connected := m.state == StateConnected
	m.mu.Unlock()

	err := m.prefs.SetAutoConnect(true)
	if err != nil {
		m.logger.Warn("could not save auto-connect preference", zap.Error(err))
	}
	if !connected {
		_ = m.Connect(ctx)
	}
	return err
}

// DisableAutoConnect stops the monitor and persists the choice. An open
// connection stays open.
func (m *Manager) DisableAutoConnect() error {
	m.mu.Lock()
	m.autoConnect = false
	m.stopMonitorLocked()
	m.mu.Unlock()

	if err := m.prefs.SetAutoConnect(false); err != nil {
		m.logger.Warn("could not save auto-connect preference", zap.Error(err))
		return err
	}
	return nil
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Status returns a snapshot for display.
func (m *Manager) Status() Status {
	m.mu.Lock()
	st := Status{
		State:        m.state,
		Connected:    m.state == StateConnected,
		Attempts:     m.attempts,
		AutoConnect:  m.autoConnect,
		AgentRunning: m.agentRunning,
	}
	if m.lastErr != nil {
		st.LastError = m.lastErr.Error()
	}
	m.mu.Unlock()
	st.Pending = m.pending.len()
	return st
}

// Subscribe registers h for frames named event, inbound or local.
func (m *Manager) Subscribe(event types.EventName, h Handler) Subscription {
	return m.bus.subscribe(event, h)
}

// SubscribeAll registers h for every frame.
func (m *Manager) SubscribeAll(h Handler) Subscription {
	return m.bus.subscribeAll(h)
}

// Send writes one uncorrelated frame. It fails with ErrNotConnected instead of
// queueing while no connection is open.
func (m *Manager) Send(ctx context.Context, event types.EventName, payload any) error {
	f, err := types.NewFrame(event, "", payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", event, err)
	}
	return m.send(ctx, f)
}

// Call sends spec.Request with a fresh request id and waits for one of the
// terminal events. Progress frames go to onProgress on the read goroutine.
// A failure event yields a *RemoteError; no answer within the timeout yields an
// error wrapping ErrTimeout.
func (m *Manager) Call(ctx context.Context, spec CallSpec, payload any, onProgress ProgressFunc) (types.Frame, error) {
	if spec.Timeout <= 0 {
		spec.Timeout = m.cfg.RequestTimeout
	}
	if m.State() != StateConnected {
		return types.Frame{}, ErrNotConnected
	}

	id := uuid.NewString()
	f, err := types.NewFrame(spec.Request, id, payload)
	if err != nil {
		return types.Frame{}, fmt.Errorf("encode %s: %w", spec.name(), err)
	}

	call := m.pending.add(id, spec, onProgress)
	if err := m.send(ctx, f); err != nil {
		m.pending.take(id)
		return types.Frame{}, err
	}

	select {
	case res := <-call.done:
		return res.frame, res.err
	case <-ctx.Done():
		if _, ok := m.pending.take(id); ok {
			return types.Frame{}, ctx.Err()
		}
		res := <-call.done
		return res.frame, res.err
	}
}

func (m *Manager) send(ctx context.Context, f types.Frame) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	if err := conn.Write(ctx, f); err != nil {
		return fmt.Errorf("send %s: %w", f.Event, err)
	}
	m.metrics.RecordFrame(metrics.DirectionOut)
	return nil
}

func (m *Manager) readLoop(ctx context.Context, conn Conn) {
	defer m.wg.Done()
	for {
		f, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, ErrMalformedFrame) {
				m.logger.Warn("dropping malformed frame", zap.Error(err))
				continue
			}
			m.handleDrop(conn, err)
			return
		}

		m.metrics.RecordFrame(metrics.DirectionIn)
		m.logger.Debug("frame received",
			zap.String("event", string(f.Event)),
			zap.String("request_id", f.RequestID))
		m.pending.deliver(f)
		m.bus.publish(f)
	}
}

func (m *Manager) keepalive(ctx context.Context, conn Conn) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case t := <-ticker.C:
			f, err := types.NewFrame(types.EventPing, "", types.Ping{Timestamp: t.UnixMilli()})
			if err != nil {
				continue
			}
			if err := conn.Write(ctx, f); err != nil {
				m.logger.Debug("keepalive ping failed", zap.Error(err))
				continue
			}
			m.metrics.RecordFrame(metrics.DirectionOut)
		}
	}
}

// handleDrop reacts to a connection that went away without being asked to.
func (m *Manager) handleDrop(conn Conn, err error) {
	m.mu.Lock()
	if m.conn != conn {
		m.mu.Unlock()
		return
	}
	m.teardownLocked()
	m.lastErr = err
	m.emitLocked(types.EventConnectionStatus, types.ConnectionStatus{Connected: false, Reason: err.Error()})
	m.scheduleReconnectLocked()
	m.flushUnlock()

	_ = conn.Close()
	m.logger.Warn("connection lost", zap.Error(err))
}

func (m *Manager) monitor(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.cfg.AutoConnectInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.Lock()
			due := m.autoConnect && !m.userDisconnected && !m.dialing && m.state != StateConnected
			m.mu.Unlock()
			if due {
				m.logger.Info("auto-connect: attempting to reconnect")
				_ = m.connect(ctx)
			}
		}
	}
}

// scheduleReconnectLocked arms one reconnect attempt, or gives up once the budget
// is spent. The exhaustion event fires once per exhaustion.
func (m *Manager) scheduleReconnectLocked() {
	if m.closed || m.userDisconnected {
		m.setStateLocked(StateDisconnected)
		return
	}
	if m.reconnectTimer != nil {
		return
	}
	if m.attempts >= m.cfg.MaxReconnectAttempts {
		m.setStateLocked(StateGivingUp)
		if !m.exhausted {
			m.exhausted = true
			m.emitLocked(types.EventReconnectExhausted, ReconnectExhausted{Attempts: m.attempts})
			m.logger.Error("max reconnection attempts reached", zap.Int("attempts", m.attempts))
		}
		return
	}

	m.attempts++
	delay := ReconnectDelay(m.cfg.ReconnectBaseDelay, m.cfg.ReconnectMaxDelay, m.attempts)
	m.setStateLocked(StateReconnecting)
	m.metrics.RecordReconnectAttempt()
	m.logger.Info("scheduling reconnect",
		zap.Int("attempt", m.attempts),
		zap.Int("max", m.cfg.MaxReconnectAttempts),
		zap.Duration("delay", delay))

	m.timerSeq++
	seq := m.timerSeq
	m.reconnectTimer = time.AfterFunc(delay, func() { m.reconnectTick(seq) })
}

func (m *Manager) reconnectTick(seq uint64) {
	m.mu.Lock()
	if m.reconnectTimer == nil || m.timerSeq != seq {
		m.mu.Unlock()
		return
	}
	m.reconnectTimer = nil
	if m.closed || m.userDisconnected {
		m.mu.Unlock()
		return
	}
	m.mu.Unlock()
	_ = m.connect(m.life)
}

func (m *Manager) stopReconnectTimerLocked() {
	if m.reconnectTimer != nil {
		m.reconnectTimer.Stop()
		m.reconnectTimer = nil
	}
}

func (m *Manager) startMonitorLocked() {
	if m.monitorCancel != nil || m.closed {
		return
	}
	ctx, cancel := context.WithCancel(m.life)
	m.monitorCancel = cancel
	m.wg.Add(1)
	go m.monitor(ctx)
}

func (m *Manager) stopMonitorLocked() {
	if m.monitorCancel != nil {
		m.monitorCancel()
		m.monitorCancel = nil
	}
}

// teardownLocked forgets the current connection and stops its goroutines.
// The caller closes the Conn after unlocking.
func (m *Manager) teardownLocked() {
	m.conn = nil
	if m.connCancel != nil {
		m.connCancel()
		m.connCancel = nil
	}
}

func (m *Manager) setStateLocked(s State) {
	if m.state == s {
		return
	}
	prev := m.state
	m.state = s
	m.metrics.SetChannelState(string(s))
	m.emitLocked(types.EventStateChanged, StateChange{From: prev, To: s})
}

// emitLocked queues a local event. It is published by flushUnlock, outside the lock.
func (m *Manager) emitLocked(event types.EventName, data any) {
	f, err := types.NewFrame(event, "", data)
	if err != nil {
		m.logger.Error("encode local event", zap.String("event", string(event)), zap.Error(err))
		return
	}
	m.outbox = append(m.outbox, f)
}

func (m *Manager) flushUnlock() {
	events := m.outbox
	m.outbox = nil
	m.mu.Unlock()
	for _, f := range events {
		m.bus.publish(f)
	}
}
