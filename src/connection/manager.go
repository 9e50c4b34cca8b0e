package connection

import (
	"bot-mirror/src/interfaces"
	"bot-mirror/src/logger"
	"bot-mirror/src/models"
	"bot-mirror/src/router"
	"bot-mirror/src/state"
	"bot-mirror/src/utils"
)

// -----------------------------------------------------------------------------
// Manager owns the lifecycle of the stream connection. All methods must run on
// the scheduler thread; transport events are posted there and tagged with the
// generation of the connection that produced them.
// -----------------------------------------------------------------------------

type Manager struct {
	url       string
	dialer    interfaces.IDialer
	sched     interfaces.IScheduler
	store     *state.Store
	router    *router.Router
	syncer    interfaces.IInitialSync
	heartbeat *HeartbeatMonitor
	reconnect *ReconnectScheduler
	logger    *logger.Logger

	state      models.ConnectionState
	conn       interfaces.IConn
	generation uint64
	active     bool
}

// Options groups the tunables of the connection lifecycle.
type Options struct {
	URL       string
	Heartbeat models.MHeartbeatConfig
	Reconnect models.MReconnectConfig
}

// -----------------------------------------------------------------------------

func NewManager(opts Options, dialer interfaces.IDialer, sched interfaces.IScheduler, store *state.Store, rt *router.Router, syncer interfaces.IInitialSync, log *logger.Logger) *Manager {
	if log == nil {
		log = logger.NewNop("Connection")
	}
	m := &Manager{
		url:       opts.URL,
		dialer:    dialer,
		sched:     sched,
		store:     store,
		router:    rt,
		syncer:    syncer,
		heartbeat: NewHeartbeatMonitor(sched, opts.Heartbeat, store, log.Component("Heartbeat")),
		reconnect: NewReconnectScheduler(sched, opts.Reconnect, log.Component("Reconnect")),
		logger:    log,
		state:     models.StateDisconnected,
		active:    true,
	}
	rt.SetLiveness(m.heartbeat)
	return m
}

// -----------------------------------------------------------------------------

// Start posts the first Connect onto the scheduler.
func (m *Manager) Start() {
	m.sched.Post(m.Connect)
}

// -----------------------------------------------------------------------------

// Connect opens a new connection unless one is already opening or open.
func (m *Manager) Connect() {
	if !m.active {
		return
	}
	if m.state == models.StateConnecting || m.state == models.StateConnected {
		m.logger.Debug("Connect ignored, already %s", m.state)
		return
	}

	m.reconnect.Cancel()
	if !m.transition(models.StateConnecting) {
		return
	}

	m.generation++
	gen := m.generation
	m.logger.Info("Connecting to %s (generation %d)", m.url, gen)

	m.conn = m.dialer.Dial(m.url, interfaces.ConnEvents{
		OnOpen: func() {
			m.sched.Post(func() { m.handleOpen(gen) })
		},
		OnMessage: func(data []byte) {
			m.sched.Post(func() { m.handleMessage(gen, data) })
		},
		OnClose: func(code int, reason string) {
			m.sched.Post(func() { m.handleClose(gen, code, reason) })
		},
		OnError: func(err error) {
			m.sched.Post(func() { m.handleError(gen, err) })
		},
	})
}

// -----------------------------------------------------------------------------

// Teardown releases every resource. No handler has any effect afterwards.
func (m *Manager) Teardown() {
	if !m.active {
		return
	}
	m.active = false
	m.reconnect.Cancel()
	m.heartbeat.Stop()
	if m.conn != nil {
		if err := m.conn.Close(utils.CloseNormal, "teardown"); err != nil {
			m.logger.Debug("Close on teardown: %v", err)
		}
		m.conn = nil
	}
	if m.state != models.StateDisconnected {
		m.transition(models.StateDisconnected)
	}
	m.logger.Info("Connection manager torn down")
}

// -----------------------------------------------------------------------------

// ForceReconnect drops the current connection and dials again immediately,
// with a fresh backoff sequence.
func (m *Manager) ForceReconnect() {
	if !m.active {
		return
	}
	m.logger.Info("Operator requested reconnect")

	m.heartbeat.Stop()
	m.reconnect.Cancel()
	m.reconnect.Reset()
	if m.conn != nil {
		old := m.conn
		m.conn = nil
		// events from the old connection become stale
		m.generation++
		if err := old.Close(utils.CloseNormal, "reconnect"); err != nil {
			m.logger.Debug("Close on reconnect: %v", err)
		}
	}
	if m.state != models.StateDisconnected {
		m.transition(models.StateDisconnected)
	}
	m.Connect()
}

// -----------------------------------------------------------------------------

func (m *Manager) State() models.ConnectionState {
	return m.state
}

// -----------------------------------------------------------------------------

func (m *Manager) Generation() uint64 {
	return m.generation
}

// -----------------------------------------------------------------------------

func (m *Manager) Active() bool {
	return m.active
}

// -----------------------------------------------------------------------------

// ReconnectAttempt exposes the backoff counter.
func (m *Manager) ReconnectAttempt() int {
	return m.reconnect.Attempt()
}

// -----------------------------------------------------------------------------
// Event handlers
// -----------------------------------------------------------------------------

func (m *Manager) isCurrent(gen uint64) bool {
	return m.active && gen == m.generation
}

// -----------------------------------------------------------------------------

func (m *Manager) handleOpen(gen uint64) {
	if !m.isCurrent(gen) || m.state != models.StateConnecting {
		return
	}
	if !m.transition(models.StateConnected) {
		return
	}

	m.reconnect.Cancel()
	m.reconnect.Reset()

	if m.syncer != nil {
		m.syncer.Run(func() bool {
			return m.isCurrent(gen) && m.state == models.StateConnected
		})
	}
	m.heartbeat.Start(m.conn)
}

// -----------------------------------------------------------------------------

func (m *Manager) handleMessage(gen uint64, data []byte) {
	if !m.isCurrent(gen) {
		return
	}
	m.router.Route(data)
}

// -----------------------------------------------------------------------------

func (m *Manager) handleClose(gen uint64, code int, reason string) {
	if !m.isCurrent(gen) {
		return
	}
	m.logger.Warning("Connection closed (code %d, reason %q)", code, reason)
	m.disconnect()
}

// -----------------------------------------------------------------------------

func (m *Manager) handleError(gen uint64, err error) {
	if !m.isCurrent(gen) {
		return
	}
	m.logger.Error("Connection error: %v", err)
	if m.conn != nil {
		if err := m.conn.Close(utils.CloseNormal, "error"); err != nil {
			m.logger.Debug("Close after error: %v", err)
		}
	}
	m.disconnect()
}

// -----------------------------------------------------------------------------

// disconnect runs once per connection; the second of close/error is a no-op.
func (m *Manager) disconnect() {
	if m.state == models.StateDisconnected {
		return
	}
	m.heartbeat.Stop()
	m.conn = nil
	m.transition(models.StateDisconnected)
	m.reconnect.Schedule(m.Connect)
}

// -----------------------------------------------------------------------------

func (m *Manager) transition(to models.ConnectionState) bool {
	from := m.state
	if !models.CanTransition(from, to) {
		m.logger.Error("Refusing illegal transition %s -> %s", from, to)
		return false
	}
	m.state = to
	m.store.SetConnectionState(to)
	m.logger.Debug("Connection %s -> %s", from, to)
	return true
}
