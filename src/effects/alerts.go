package effects

import (
	"io"
	"strings"
	"sync"

	"bot-mirror/src/logger"
)

// Sound handles announced by the bot
const (
	SoundEntry   = "entry"
	SoundProfit  = "profit"
	SoundLoss    = "loss"
	SoundWarning = "warning"
)

// Alert is one playable handle.
type Alert struct {
	Name  string
	Bells int
}

// -----------------------------------------------------------------------------
// AlertDispatcher resolves sound names to handles and plays them: a terminal
// bell on the configured writer plus every registered listener. Play runs on
// the event loop, so listeners must not block.
// -----------------------------------------------------------------------------

type AlertDispatcher struct {
	logger *logger.Logger
	bell   io.Writer

	mu        sync.RWMutex
	handles   map[string]Alert
	listeners []func(Alert)
}

// -----------------------------------------------------------------------------

// NewAlertDispatcher registers the default handles. bell may be nil.
func NewAlertDispatcher(bell io.Writer, log *logger.Logger) *AlertDispatcher {
	if log == nil {
		log = logger.NewNop("Alerts")
	}
	d := &AlertDispatcher{
		logger:  log,
		bell:    bell,
		handles: make(map[string]Alert),
	}
	d.Register(Alert{Name: SoundEntry, Bells: 1})
	d.Register(Alert{Name: SoundProfit, Bells: 2})
	d.Register(Alert{Name: SoundLoss, Bells: 1})
	d.Register(Alert{Name: SoundWarning, Bells: 3})
	return d
}

// -----------------------------------------------------------------------------

func (d *AlertDispatcher) Register(alert Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handles[strings.ToLower(alert.Name)] = alert
}

// -----------------------------------------------------------------------------

// OnAlert adds a listener called for every played alert.
func (d *AlertDispatcher) OnAlert(fn func(Alert)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners = append(d.listeners, fn)
}

// -----------------------------------------------------------------------------

// Play looks up name and plays it. Unknown names are ignored and report false.
func (d *AlertDispatcher) Play(name string) bool {
	d.mu.RLock()
	alert, ok := d.handles[strings.ToLower(name)]
	listeners := append([]func(Alert){}, d.listeners...)
	d.mu.RUnlock()

	if !ok {
		d.logger.Debug("Ignoring unknown sound %q", name)
		return false
	}

	if d.bell != nil && alert.Bells > 0 {
		if _, err := io.WriteString(d.bell, strings.Repeat("\a", alert.Bells)); err != nil {
			d.logger.Debug("Bell write failed: %v", err)
		}
	}
	for _, fn := range listeners {
		fn(alert)
	}
	d.logger.Info("Alert: %s", alert.Name)
	return true
}
