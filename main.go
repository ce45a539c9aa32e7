package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/daemon"
	"github.com/mahyarmirrashed/wallrot/internal/history"
	"github.com/mahyarmirrashed/wallrot/internal/instance"
	"github.com/mahyarmirrashed/wallrot/internal/utils"
	godaemon "github.com/sevlyar/go-daemon"
	log "github.com/sirupsen/logrus"
	altsrc "github.com/urfave/cli-altsrc/v3"
	"github.com/urfave/cli-altsrc/v3/yaml"
	"github.com/urfave/cli/v3"
)

// Set at build time: go build -ldflags "-X main.version=1.2.3"
var version = "dev"

var configFile string

// sources reads a flag from the environment, then from key in the config file.
func sources(env, key string) cli.ValueSourceChain {
	return cli.NewValueSourceChain(
		cli.EnvVar(env),
		yaml.YAML(key, altsrc.NewStringPtrSourcer(&configFile)),
	)
}

func main() {
	app := &cli.Command{
		Name:      "wallrot",
		Usage:     "Wallpaper rotation daemon",
		Version:   version,
		ArgsUsage: "[files...]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "path to config file",
				Sources:     cli.EnvVars("WALLROT_CONFIG"),
				Value:       config.DefaultPath(),
				Destination: &configFile,
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "logging level: debug, info, warn, error",
				Sources: sources("WALLROT_LOG_LEVEL", "log_level"),
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "write rotated logs to this file",
				Sources: sources("WALLROT_LOG_FILE", "log_file"),
			},
			&cli.BoolFlag{
				Name:    "daemonize",
				Usage:   "run as daemon",
				Sources: sources("WALLROT_DAEMONIZE", "daemonize"),
			},
			&cli.StringFlag{
				Name:    "socket",
				Usage:   "control socket path",
				Sources: sources("WALLROT_SOCKET", "socket"),
			},
			&cli.StringFlag{
				Name:    "converter",
				Usage:   "conversion backend: magick, builtin",
				Sources: sources("WALLROT_CONVERTER", "converter"),
			},
			&cli.StringFlag{
				Name:    "desktop",
				Usage:   "desktop integration: xsetbg, gnome, kde, xfce, sway, auto",
				Sources: sources("WALLROT_DESKTOP", "desktop"),
			},
			&cli.DurationFlag{
				Name:    "interval",
				Aliases: []string{"i"},
				Usage:   "rotation interval (at least 10s)",
				Sources: cli.EnvVars("WALLROT_INTERVAL"),
			},
			&cli.BoolFlag{
				Name:    "running",
				Usage:   "rotate on the timer",
				Sources: sources("WALLROT_RUNNING", "running"),
			},
			&cli.BoolFlag{
				Name:    "notify",
				Usage:   "desktop notification on every rotation",
				Sources: sources("WALLROT_NOTIFY", "notify"),
			},
		},
		Commands: []*cli.Command{
			nextCommand,
			statusCommand,
			historyCommand,
			configCommand,
		},
		Action: run,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// loadConfig reads the config file and applies flags set on the command line.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return nil, err
	}

	// Override config with flags if set
	if cmd.IsSet("log-level") {
		cfg.LogLevel = cmd.String("log-level")
	}
	if cmd.IsSet("log-file") {
		cfg.LogFile = cmd.String("log-file")
	}
	if cmd.IsSet("daemonize") {
		cfg.Daemonize = cmd.Bool("daemonize")
	}
	if cmd.IsSet("socket") {
		cfg.Socket = cmd.String("socket")
	}
	if cmd.IsSet("converter") {
		cfg.Converter = cmd.String("converter")
	}
	if cmd.IsSet("desktop") {
		cfg.Desktop = cmd.String("desktop")
	}
	if cmd.IsSet("interval") {
		cfg.SetInterval(cmd.Duration("interval"))
	}
	if cmd.IsSet("running") {
		cfg.Running = cmd.Bool("running")
	}
	if cmd.IsSet("notify") {
		cfg.Notify = cmd.Bool("notify")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func run(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	configDir, err := config.Dir()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Daemonize && cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(configDir, config.AppName+".log")
	}
	closer := utils.ConfigureLogging(cfg.LogLevel, cfg.LogFile)
	defer closer.Close()

	socket := instance.SocketPath(cfg.Socket)
	files := cmd.Args().Slice()

	lock, err := instance.Gate(ctx, socket, files)
	if err != nil {
		log.Fatalf("Unable to reach running instance: %v", err)
	}
	if lock == nil {
		return nil // forwarded to the running instance
	}

	// Resolve before the daemon changes to /
	if len(files) > 0 {
		if files, err = absolute(files); err != nil {
			return err
		}
		cfg.Source.Kind = config.SourceDrop
		cfg.Source.Files = files
	}

	// Only daemonize if config says so
	if cfg.Daemonize {
		_ = lock.Release()

		daemonCtx := &godaemon.Context{
			PidFileName: filepath.Join(instance.RuntimeDir(), config.AppName+".pid"),
			PidFilePerm: 0644,
			WorkDir:     "/",
			Umask:       027,
			Args:        append([]string{"[wallrot]"}, os.Args[1:]...),
		}

		d, err := daemonCtx.Reborn()
		if err != nil {
			log.Fatalf("Unable to run: %s", err)
		}
		if d != nil {
			return nil // Parent process exits
		}
		defer daemonCtx.Release()

		lock, err = instance.Acquire(instance.LockPath(socket))
		if errors.Is(err, instance.ErrLocked) {
			log.Info("Another instance started first, exiting")
			return nil
		}
		if err != nil {
			log.Fatalf("Unable to take instance lock: %v", err)
		}
		log.Info("Daemon started")
	} else {
		log.Info("Running in foreground (not daemonized)")
	}
	defer lock.Release()

	persisted, err := config.LoadConfig(cmd.String("config"))
	if err != nil {
		return err
	}

	store, err := history.Open(filepath.Join(configDir, history.Filename))
	if err != nil {
		log.Warnf("History disabled: %v", err)
	} else {
		defer store.Close()
	}

	d, err := daemon.New(cfg, daemon.Options{
		ConfigPath: cmd.String("config"),
		ConfigDir:  configDir,
		Socket:     socket,
		History:    store,
		Persisted:  persisted,
	})
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	return d.Run(ctx)
}

func absolute(files []string) ([]string, error) {
	out := make([]string, 0, len(files))
	for _, f := range files {
		p, err := filepath.Abs(utils.ExpandTilde(f))
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}
