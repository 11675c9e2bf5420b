package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/yok-tottii/ezdaw/internal/api"
	"github.com/yok-tottii/ezdaw/internal/audio"
	"github.com/yok-tottii/ezdaw/internal/config"
	"github.com/yok-tottii/ezdaw/internal/engine"
	"github.com/yok-tottii/ezdaw/internal/logger"
	"github.com/yok-tottii/ezdaw/internal/notification"
	"github.com/yok-tottii/ezdaw/internal/recording"
	"github.com/yok-tottii/ezdaw/internal/server"
	"golang.org/x/sync/errgroup"
)

const version = "0.1.0"

func init() {
	// Cocoa and the global hotkey require the main thread on macOS.
	runtime.LockOSThread()
}

// flags holds the command line overrides of the configuration file
type flags struct {
	configPath  string
	backend     string
	debugLevel  string
	logDir      string
	port        int
	headless    bool
	listDevices bool
	version     bool
}

func parseFlags(args []string) (flags, error) {
	var f flags
	fs := flag.NewFlagSet("ezdaw", flag.ContinueOnError)
	fs.StringVar(&f.configPath, "config", config.GetConfigPath(), "path to the configuration file")
	fs.StringVar(&f.backend, "backend", "", "audio backend (portaudio or malgo)")
	fs.StringVar(&f.debugLevel, "debuglevel", "", "log level, optionally with subsystem overrides (info,ENGN=debug)")
	fs.StringVar(&f.logDir, "logdir", logger.DefaultConfig().LogDir, "directory for log files, empty to disable")
	fs.IntVar(&f.port, "port", -1, "control API port (0 for random)")
	fs.BoolVar(&f.headless, "headless", false, "run without tray icon and hotkey")
	fs.BoolVar(&f.listDevices, "list-devices", false, "print the audio devices and exit")
	fs.BoolVar(&f.version, "version", false, "print the version and exit")
	if err := fs.Parse(args); err != nil {
		return flags{}, err
	}
	return f, nil
}

// apply overrides cfg with the flags that were set
func (f flags) apply(cfg *config.Config) error {
	updates := make(map[string]interface{})
	if f.backend != "" {
		updates["backend"] = f.backend
	}
	if f.debugLevel != "" {
		updates["debug_level"] = f.debugLevel
	}
	if f.port >= 0 {
		updates["server_port"] = float64(f.port)
	}
	if len(updates) == 0 {
		return cfg.Validate()
	}
	return cfg.Update(updates)
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Fprintf(os.Stderr, "ezdaw: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	f, err := parseFlags(args)
	if err != nil {
		return err
	}
	if f.version {
		fmt.Printf("ezdaw %s (%s/%s)\n", version, runtime.GOOS, runtime.GOARCH)
		return nil
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return err
	}
	if err := f.apply(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logCfg := logger.DefaultConfig()
	logCfg.LogDir = f.logDir
	logCfg.DebugLevel = cfg.DebugLevel
	logs, err := logger.New(logCfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logs.Close()

	log := logs.Logger(logger.SubsysMain)
	log.Infof("ezdaw v%s starting (config %s)", version, f.configPath)

	host, err := audio.OpenHost(cfg.Backend, logs.Logger(logger.SubsysAudio))
	if err != nil {
		return err
	}
	defer host.Close()

	if f.listDevices {
		return printDevices(host, logs)
	}

	eng := engine.New(host, recording.NewLibrary(),
		engine.WithLogger(logs.Logger(logger.SubsysEngine)),
		engine.WithStatsInterval(cfg.StatsDuration()),
		engine.WithRecordPrealloc(cfg.PreallocDuration()))

	rec := recording.NewManager(eng, recording.Config{
		MaxDuration:    cfg.MaxRecordDuration(),
		RequestTimeout: recording.DefaultConfig().RequestTimeout,
	}, logs.Logger(logger.SubsysRecording))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	app := &App{
		log:        log,
		logs:       logs,
		config:     cfg,
		configPath: f.configPath,
		headless:   f.headless,
		engine:     eng,
		recorder:   rec,
		notifier:   notification.New("ezdaw", logs.Logger(logger.SubsysMain)),
		ctx:        ctx,
		quit:       cancel,
	}

	if !f.headless {
		app.checkPermissions()
	}
	app.startEngine()
	if !f.headless {
		app.trayMgr = app.newTray()
	}

	srvCfg := server.DefaultConfig()
	srvCfg.Port = cfg.ServerPort
	app.httpServer = server.New(srvCfg, logs.Logger(logger.SubsysHTTP))
	app.apiHandler = api.New(cfg, eng, rec,
		api.WithLogger(logs.Logger(logger.SubsysHTTP)),
		api.WithConfigPath(f.configPath),
		api.WithHotkeyReload(app.ReloadHotkey),
		api.WithEngineChanged(app.refreshTray))
	app.apiHandler.RegisterRoutes(app.httpServer.GetMux())

	if err := app.httpServer.Start(); err != nil {
		log.Errorf("Unable to start control API: %v", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		app.announceClips()
		return nil
	})
	g.Go(func() error {
		app.monitor(gctx, 2*time.Second)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return app.shutdown()
	})

	app.printBanner()

	if f.headless {
		<-ctx.Done()
	} else {
		app.refreshTray()
		app.trayMgr.Run()
		cancel()
	}

	return g.Wait()
}

// printDevices prints the device catalog of host
func printDevices(host audio.Host, logs *logger.Logger) error {
	catalog, _, err := audio.Enumerate(host, logs.Logger(logger.SubsysAudio))
	if err != nil {
		return err
	}
	for _, dir := range []audio.Direction{audio.Input, audio.Output} {
		fmt.Printf("%s devices:\n", dir)
		for _, name := range catalog.Names(dir) {
			info, _ := catalog.Lookup(dir, name)
			fmt.Printf("  %-40s %6d Hz  %d ch  %s\n", name, info.SampleRate, info.Channels, info.Format)
		}
	}
	return nil
}
