package backlight

import (
	"fmt"
	"image/color"
	"sync"
	"time"

	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// Manager lights the backlight on activity and turns it off after an idle
// timeout. There is a single pending alarm; every activity replaces it.
type Manager struct {
	logger    *zap.Logger
	backlight domain.Backlight
	active    color.RGBA
	timeout   time.Duration

	mu    sync.Mutex
	alarm *time.Timer
	gen   uint64 // bumped on every activity, stale alarms compare unequal
	lit   bool
}

// NewManager creates a manager with the backlight assumed off
func NewManager(logger *zap.Logger, backlight domain.Backlight, active color.RGBA, timeout time.Duration) *Manager {
	return &Manager{
		logger:    logger,
		backlight: backlight,
		active:    active,
		timeout:   timeout,
	}
}

// Activity turns the backlight on and restarts the idle alarm
func (m *Manager) Activity() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alarm != nil {
		m.alarm.Stop()
	}
	m.gen++
	gen := m.gen

	if err := m.backlight.SetColor(m.active); err != nil {
		m.logger.Warn("Failed to light backlight", zap.Error(err))
	} else {
		m.lit = true
	}

	m.alarm = time.AfterFunc(m.timeout, func() { m.expire(gen) })
}

func (m *Manager) expire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Superseded by a later activity
	if gen != m.gen || !m.lit {
		return
	}
	if err := m.backlight.SetColor(domain.Off); err != nil {
		m.logger.Warn("Failed to dim backlight", zap.Error(err))
		return
	}
	m.lit = false
	m.logger.Debug("Backlight idle, turned off")
}

// Lit reports whether the backlight is currently on
func (m *Manager) Lit() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lit
}

// Stop cancels the pending alarm and turns the backlight off
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.alarm != nil {
		m.alarm.Stop()
		m.alarm = nil
	}
	m.gen++
	m.lit = false

	if err := m.backlight.SetColor(domain.Off); err != nil {
		return fmt.Errorf("backlight off failed: %w", err)
	}
	return nil
}
