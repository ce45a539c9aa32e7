package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/instance"
	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"
)

func client(cmd *cli.Command) *instance.Client {
	return instance.NewClient(instance.SocketPath(cmd.String("socket")))
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func main() {
	app := &cli.Command{
		Name:  "wallctl",
		Usage: "control a running wallrot",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "socket",
				Aliases: []string{"s"},
				Usage:   "control socket path",
				Sources: cli.EnvVars("WALLROT_SOCKET"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "next",
				Usage: "rotate now",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					st, err := client(cmd).Next(ctx)
					if err != nil {
						return err
					}
					return printJSON(st)
				},
			},
			{
				Name:      "open",
				Usage:     "rotate over the given files",
				ArgsUsage: "FILE...",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() == 0 {
						return fmt.Errorf("usage: wallctl open FILE...")
					}
					st, err := client(cmd).Open(ctx, cmd.Args().Slice())
					if err != nil {
						return err
					}
					return printJSON(st)
				},
			},
			{
				Name:  "status",
				Usage: "print instance status",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					st, err := client(cmd).Status(ctx)
					if err != nil {
						return err
					}
					return printJSON(st)
				},
			},
			{
				Name:      "apply",
				Usage:     "replace the running configuration with a YAML file",
				ArgsUsage: "FILE",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					if cmd.NArg() != 1 {
						return fmt.Errorf("usage: wallctl apply FILE")
					}
					st, err := apply(ctx, client(cmd), cmd.Args().First())
					if err != nil {
						return err
					}
					return printJSON(st)
				},
			},
			{
				Name:  "watch",
				Usage: "print events as they happen",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
					defer stop()

					enc := json.NewEncoder(os.Stdout)
					return client(cmd).Events(ctx, func(ev instance.Event) {
						if err := enc.Encode(ev); err != nil {
							log.Warnf("Failed to print event: %v", err)
						}
					})
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}

// apply sends the config file at path to the running instance. The file must
// exist.
func apply(ctx context.Context, c *instance.Client, path string) (*instance.Status, error) {
	cfg, err := config.ReadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return c.PutConfig(ctx, cfg)
}
