//go:build linux
// +build linux

package player

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	mprisPrefix      = "org.mpris.MediaPlayer2."
	mprisPath        = "/org/mpris/MediaPlayer2"
	mprisPlayerIface = "org.mpris.MediaPlayer2.Player"
)

// Mpris drives an MPRIS-capable player (e.g. mpd through mpDris2) over the
// session bus. Change notifications are PropertiesChanged and Seeked signals.
type Mpris struct {
	logger    *zap.Logger
	wanted    string // configured well-known name, empty = first found
	newClient func() (DBusClient, error)

	mu      sync.RWMutex
	conn    DBusClient
	player  string // well-known name, e.g. org.mpris.MediaPlayer2.mpd
	owner   string // unique name of the current owner, e.g. :1.45
	signals chan *dbus.Signal
}

// NewMpris creates an unconnected MPRIS backend
func NewMpris(logger *zap.Logger, cfg config.PlayerConfig) *Mpris {
	return &Mpris{
		logger: logger,
		wanted: cfg.MprisName,
		newClient: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Connect attaches to the session bus, resolves the player and subscribes
// to its signals
func (m *Mpris) Connect(ctx context.Context) error {
	conn, err := m.newClient()
	if err != nil {
		return fmt.Errorf("%w: session bus: %w", domain.ErrConnectionFailure, err)
	}

	player, err := m.resolvePlayer(conn)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailure, err)
	}
	owner, err := conn.GetNameOwner(player)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: owner of %s: %w", domain.ErrConnectionFailure, player, err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		_ = conn.Close()
		return fmt.Errorf("%w: failed to add match signal: %w", domain.ErrConnectionFailure, err)
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(mprisPlayerIface),
		dbus.WithMatchMember("Seeked"),
	); err != nil {
		m.logger.Warn("Failed to add Seeked match signal", zap.Error(err))
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		m.logger.Warn("Failed to add NameOwnerChanged match signal", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	m.mu.Lock()
	m.conn = conn
	m.player = player
	m.owner = owner
	m.signals = signals
	m.mu.Unlock()

	m.logger.Info("Attached to MPRIS player",
		zap.String("player", player),
		zap.String("unique", owner))
	return nil
}

// resolvePlayer returns the configured player, or the first one on the bus
func (m *Mpris) resolvePlayer(conn DBusClient) (string, error) {
	if m.wanted != "" {
		return m.wanted, nil
	}
	names, err := conn.ListNames()
	if err != nil {
		return "", fmt.Errorf("failed to list bus names: %w", err)
	}
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			m.logger.Info("Detected MPRIS player", zap.String("name", name))
			return name, nil
		}
	}
	return "", errors.New("no MPRIS player on the bus")
}

// WaitForChange blocks until the player reports a playback or metadata change
func (m *Mpris) WaitForChange(ctx context.Context) error {
	m.mu.RLock()
	signals := m.signals
	m.mu.RUnlock()
	if signals == nil {
		return fmt.Errorf("%w: %w", domain.ErrConnectionFailure, errNotConnected)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-signals:
			if !ok {
				return fmt.Errorf("%w: session bus closed", domain.ErrConnectionFailure)
			}
			if sig == nil {
				continue
			}
			changed, err := m.handleSignal(sig)
			if err != nil {
				return err
			}
			if changed {
				return nil
			}
		}
	}
}

// handleSignal reports whether sig is a change of our player
func (m *Mpris) handleSignal(sig *dbus.Signal) (bool, error) {
	switch sig.Name {
	case "org.freedesktop.DBus.NameOwnerChanged":
		return m.handleNameOwnerChanged(sig)

	case mprisPlayerIface + ".Seeked":
		return m.fromOwner(sig.Sender), nil

	case "org.freedesktop.DBus.Properties.PropertiesChanged":
		if !m.fromOwner(sig.Sender) || len(sig.Body) < 2 {
			return false, nil
		}
		iface, ok := sig.Body[0].(string)
		if !ok || iface != mprisPlayerIface {
			return false, nil
		}
		props, ok := sig.Body[1].(map[string]dbus.Variant)
		if !ok {
			return false, nil
		}
		_, hasMetadata := props["Metadata"]
		_, hasStatus := props["PlaybackStatus"]
		m.logger.Debug("Received PropertiesChanged signal",
			zap.String("sender", sig.Sender),
			zap.Int("properties", len(props)))
		return hasMetadata || hasStatus, nil
	}
	return false, nil
}

// handleNameOwnerChanged follows a restart of the player; its disappearance is terminal
func (m *Mpris) handleNameOwnerChanged(sig *dbus.Signal) (bool, error) {
	if len(sig.Body) < 3 {
		return false, nil
	}
	name, _ := sig.Body[0].(string)
	newOwner, _ := sig.Body[2].(string)

	m.mu.Lock()
	defer m.mu.Unlock()

	if name != m.player {
		return false, nil
	}
	if newOwner == "" {
		return false, fmt.Errorf("%w: %s left the bus", domain.ErrConnectionFailure, name)
	}

	m.logger.Info("MPRIS player ownership changed",
		zap.String("player", name),
		zap.String("oldUnique", m.owner),
		zap.String("newUnique", newOwner))
	m.owner = newOwner
	return true, nil
}

func (m *Mpris) fromOwner(sender string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return sender == m.owner
}

// Status reads PlaybackStatus, Metadata and Position
func (m *Mpris) Status(ctx context.Context) (domain.Status, error) {
	st := domain.Status{State: domain.StateStopped, SongID: domain.NoSong}

	variant, err := m.property("PlaybackStatus")
	if err != nil {
		return st, classifyDBus("get PlaybackStatus", err)
	}
	switch variant.Value() {
	case "Playing":
		st.State = domain.StatePlaying
	case "Paused":
		st.State = domain.StatePaused
	}
	if st.State == domain.StateStopped {
		return st, nil
	}

	metadata, err := m.metadata()
	if err != nil {
		return st, err
	}
	st.SongID = trackSongID(metadata)
	st.Duration = microsToSeconds(metadata["mpris:length"])

	// Position is optional for some players
	if pos, err := m.property("Position"); err == nil {
		st.Elapsed = microsToSeconds(pos)
	} else if err := classifyDBus("get Position", err); errors.Is(err, domain.ErrConnectionFailure) {
		return st, err
	}

	return st, nil
}

// CurrentSong reads the xesam fields of Metadata
func (m *Mpris) CurrentSong(ctx context.Context) (domain.Song, error) {
	metadata, err := m.metadata()
	if err != nil {
		return domain.Song{}, err
	}
	return m.parseMetadata(metadata), nil
}

// Ping calls org.freedesktop.DBus.Peer.Ping on the player
func (m *Mpris) Ping(ctx context.Context) error {
	return m.call("org.freedesktop.DBus.Peer.Ping")
}

// Previous plays the previous track
func (m *Mpris) Previous(ctx context.Context) error {
	return m.call(mprisPlayerIface + ".Previous")
}

// Next plays the next track
func (m *Mpris) Next(ctx context.Context) error {
	return m.call(mprisPlayerIface + ".Next")
}

// Stop stops playback
func (m *Mpris) Stop(ctx context.Context) error {
	return m.call(mprisPlayerIface + ".Stop")
}

// TogglePause toggles between playing and paused
func (m *Mpris) TogglePause(ctx context.Context) error {
	return m.call(mprisPlayerIface + ".PlayPause")
}

// SeekRelative seeks by delta, in microseconds on the wire
func (m *Mpris) SeekRelative(ctx context.Context, delta time.Duration) error {
	return m.call(mprisPlayerIface+".Seek", delta.Microseconds())
}

// Close disconnects from the bus, which also closes the signal channel
func (m *Mpris) Close() error {
	m.mu.Lock()
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	if err := conn.Close(); err != nil {
		return fmt.Errorf("failed to close D-Bus connection: %w", err)
	}
	m.logger.Info("Detached from MPRIS player")
	return nil
}

func (m *Mpris) client() (DBusClient, string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.conn == nil {
		return nil, "", errNotConnected
	}
	return m.conn, m.player, nil
}

func (m *Mpris) property(name string) (dbus.Variant, error) {
	conn, player, err := m.client()
	if err != nil {
		return dbus.Variant{}, err
	}
	return conn.GetProperty(player, mprisPath, mprisPlayerIface+"."+name)
}

func (m *Mpris) call(method string, args ...any) error {
	conn, player, err := m.client()
	if err != nil {
		return classifyDBus(method, err)
	}
	return classifyDBus(method, conn.Call(player, mprisPath, method, args...))
}

// metadata returns the Metadata map; a malformed value counts as empty
func (m *Mpris) metadata() (map[string]dbus.Variant, error) {
	variant, err := m.property("Metadata")
	if err != nil {
		return nil, classifyDBus("get Metadata", err)
	}
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		m.logger.Debug("Metadata variant is not a map, skipping")
		return nil, nil
	}
	return metadata, nil
}

// parseMetadata converts MPRIS metadata to domain model
func (m *Mpris) parseMetadata(metadata map[string]dbus.Variant) domain.Song {
	var song domain.Song

	if titleVar, ok := metadata["xesam:title"]; ok {
		if title, ok := titleVar.Value().(string); ok {
			song.Title = title
		}
	}

	// Artist is a list, the panel shows the first entry
	if artistVar, ok := metadata["xesam:artist"]; ok {
		switch artists := artistVar.Value().(type) {
		case []string:
			if len(artists) > 0 {
				song.Artist = artists[0]
			}
		case string:
			song.Artist = artists
		default:
			m.logger.Debug("Unexpected artist type in metadata",
				zap.String("type", fmt.Sprintf("%T", artistVar.Value())))
		}
	}

	if albumVar, ok := metadata["xesam:album"]; ok {
		if album, ok := albumVar.Value().(string); ok {
			song.Album = album
		}
	}

	return song
}

// trackSongID hashes mpris:trackid into a stable non-negative id
func trackSongID(metadata map[string]dbus.Variant) domain.SongID {
	v, ok := metadata["mpris:trackid"]
	if !ok {
		return domain.NoSong
	}

	var id string
	switch t := v.Value().(type) {
	case dbus.ObjectPath:
		id = string(t)
	case string:
		id = t
	default:
		return domain.NoSong
	}
	if id == "" || id == "/org/mpris/MediaPlayer2/TrackList/NoTrack" {
		return domain.NoSong
	}

	h := fnv.New64a()
	_, _ = h.Write([]byte(id))
	return domain.SongID(h.Sum64() >> 1)
}

// microsToSeconds reads an integer microsecond variant; anything else is zero
func microsToSeconds(v dbus.Variant) float64 {
	switch n := v.Value().(type) {
	case int64:
		return float64(n) / 1e6
	case uint64:
		return float64(n) / 1e6
	case int32:
		return float64(n) / 1e6
	case uint32:
		return float64(n) / 1e6
	}
	return 0
}

// classifyDBus maps error replies to CommandRejected and everything else,
// a dead bus included, to ConnectionFailure
func classifyDBus(op string, err error) error {
	if err == nil {
		return nil
	}
	var reply dbus.Error
	var replyPtr *dbus.Error
	if errors.As(err, &reply) || errors.As(err, &replyPtr) {
		return fmt.Errorf("%w: %s: %w", domain.ErrCommandRejected, op, err)
	}
	return fmt.Errorf("%w: %s: %w", domain.ErrConnectionFailure, op, err)
}
