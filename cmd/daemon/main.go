package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/genricoloni/mpdpanel/internal/backlight"
	"github.com/genricoloni/mpdpanel/internal/config"
	"github.com/genricoloni/mpdpanel/internal/device"
	"github.com/genricoloni/mpdpanel/internal/domain"
	"github.com/genricoloni/mpdpanel/internal/engine"
	"github.com/genricoloni/mpdpanel/internal/input"
	"github.com/genricoloni/mpdpanel/internal/player"
	"github.com/genricoloni/mpdpanel/internal/render"
	"github.com/genricoloni/mpdpanel/internal/schedule"
	"github.com/spf13/pflag"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// CoreOptions wires the panel logic. It expects an *config.AppConfig, a
// domain.Player and a *device.Hardware to be provided.
var CoreOptions = fx.Options(
	// Logger configuration
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log}
	}),

	fx.Provide(
		newLogger,
		newRasterizer,
		newSurface,
		newScheduleSet,
		newDispatcher,
		newBacklightManager,
		newEngine,
	),

	// Lifecycle hooks
	fx.Invoke(registerHooks),
)

// AppOptions adds the real player backend and panel to CoreOptions
var AppOptions = fx.Options(
	CoreOptions,
	fx.Provide(
		player.New,
		openHardware,
	),
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	flags, err := parseFlags(args)
	if errors.Is(err, pflag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, "configuration error:", err)
		return 2
	}

	var hw *device.Hardware
	app := fx.New(
		fx.Supply(cfg),
		AppOptions,
		fx.Populate(&hw),
	)

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	startCtx, cancelStart := context.WithTimeout(ctx, app.StartTimeout())
	defer cancelStart()
	if err := app.Start(startCtx); err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		return 1
	}

	var quit <-chan struct{}
	if hw != nil {
		quit = hw.Quit()
	}

	code := 0
	select {
	case <-ctx.Done():
	case <-quit:
	case sig := <-app.Wait():
		code = sig.ExitCode
	}

	// Stop the application gracefully
	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		fmt.Fprintln(os.Stderr, "shutdown failed:", err)
		if code == 0 {
			code = 1
		}
	}
	return code
}

func parseFlags(args []string) (config.Flags, error) {
	var flags config.Flags

	fs := pflag.NewFlagSet("mpdpanel", pflag.ContinueOnError)
	fs.StringVarP(&flags.ConfigPath, "config", "c", "", "path to an extra config file (loaded last)")
	fs.BoolVarP(&flags.Debug, "debug", "d", false, "enable debug logging")
	fs.StringVar(&flags.Device, "device", "", "display driver: gfxhat, ssd1306 or terminal")

	err := fs.Parse(args)
	return flags, err
}

// newLogger creates the production logger at the configured level. The
// terminal simulator owns the tty, so its logs go to a file.
func newLogger(cfg *config.AppConfig) (*zap.Logger, error) {
	level, err := zap.ParseAtomicLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	zc.Level = level
	if cfg.Display.Driver == config.DriverTerminal {
		path := filepath.Join(os.TempDir(), "mpdpanel.log")
		zc.OutputPaths = []string{path}
		zc.ErrorOutputPaths = []string{path}
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, err
	}
	return logger, nil
}

// openHardware brings up the panel and closes it after every other stop hook
func openHardware(lc fx.Lifecycle, logger *zap.Logger, cfg *config.AppConfig) (*device.Hardware, error) {
	hw, err := device.Open(logger.Named("device"), cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return hw.Close()
		},
	})
	return hw, nil
}

func newRasterizer(logger *zap.Logger, cfg *config.AppConfig) (render.Rasterizer, error) {
	return render.NewFontRasterizer(logger.Named("render"), cfg)
}

func newSurface(logger *zap.Logger, cfg *config.AppConfig, hw *device.Hardware, raster render.Rasterizer) *render.Surface {
	return render.NewSurface(logger.Named("render"), cfg, hw.Display, raster)
}

func newScheduleSet(logger *zap.Logger, surface *render.Surface, p domain.Player) *schedule.Set {
	return schedule.NewSet(logger.Named("schedule"), surface, p)
}

func newDispatcher(logger *zap.Logger, p domain.Player, hw *device.Hardware) *input.Dispatcher {
	return input.NewDispatcher(logger.Named("input"), p, hw.Touch)
}

func newBacklightManager(logger *zap.Logger, cfg *config.AppConfig, hw *device.Hardware) (*backlight.Manager, error) {
	active, err := cfg.ActiveColor()
	if err != nil {
		return nil, err
	}
	return backlight.NewManager(logger.Named("backlight"), hw.Backlight, active, cfg.Backlight.IdleTimeout), nil
}

type engineParams struct {
	fx.In

	Logger     *zap.Logger
	Config     *config.AppConfig
	Player     domain.Player
	Surface    *render.Surface
	Schedule   *schedule.Set
	Dispatcher *input.Dispatcher
	Backlight  *backlight.Manager
	Hardware   *device.Hardware
	Shutdowner fx.Shutdowner
}

func newEngine(p engineParams) *engine.Engine {
	return engine.NewEngine(
		p.Logger.Named("engine"),
		p.Player,
		p.Surface,
		p.Schedule,
		p.Dispatcher,
		p.Backlight,
		p.Hardware.Touch,
		p.Shutdowner,
		p.Config.Display.Width,
	)
}

// registerHooks sets up application lifecycle hooks
func registerHooks(lc fx.Lifecycle, logger *zap.Logger, eng *engine.Engine) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := eng.Start(ctx); err != nil {
				return err
			}
			logger.Info("mpdpanel started")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down")
			return eng.Stop(ctx)
		},
	})
}
