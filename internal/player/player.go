// Package player implements the player protocol collaborator: MPD over its
// text protocol, and any MPRIS player over D-Bus.
package player

import (
	"fmt"

	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"go.uber.org/zap"
)

// New returns the backend selected by cfg.Player.Backend
func New(logger *zap.Logger, cfg *config.AppConfig) (domain.Player, error) {
	logger = logger.With(zap.String("backend", cfg.Player.Backend))

	switch cfg.Player.Backend {
	case config.BackendMPD:
		return NewMPD(logger, cfg.Player), nil
	case config.BackendMpris:
		return NewMpris(logger, cfg.Player), nil
	default:
		return nil, fmt.Errorf("unknown player backend %q", cfg.Player.Backend)
	}
}
