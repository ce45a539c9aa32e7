package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/mahyarmirrashed/wallrot/internal/config"
	"github.com/mahyarmirrashed/wallrot/internal/daemon"
	"github.com/mahyarmirrashed/wallrot/internal/history"
	"github.com/mahyarmirrashed/wallrot/internal/instance"
	"github.com/mahyarmirrashed/wallrot/internal/utils"
	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"
)

var errNotRunning = errors.New("wallrot is not running")

var nextCommand = &cli.Command{
	Name:  "next",
	Usage: "show the next wallpaper now",
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		closer := utils.ConfigureLogging(cfg.LogLevel, "")
		defer closer.Close()

		client := instance.NewClient(instance.SocketPath(cfg.Socket))
		if client.Health(ctx) == nil {
			st, err := client.Next(ctx)
			if err != nil {
				return err
			}
			fmt.Println(st.Output)
			return nil
		}

		// nobody is running: rotate once in this process
		configDir, err := config.Dir()
		if err != nil {
			return err
		}
		d, err := daemon.New(cfg, daemon.Options{ConfigDir: configDir})
		if err != nil {
			return err
		}
		if err := d.Rotate(ctx); err != nil {
			return err
		}
		if err := d.Cleanup(); err != nil {
			return err
		}
		fmt.Println(d.Status().Output)
		return nil
	},
}

var statusCommand = &cli.Command{
	Name:  "status",
	Usage: "print the status of the running instance",
	Flags: []cli.Flag{
		&cli.BoolFlag{Name: "yaml", Usage: "print as YAML"},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		client := instance.NewClient(instance.SocketPath(cfg.Socket))
		if client.Health(ctx) != nil {
			return errNotRunning
		}
		st, err := client.Status(ctx)
		if err != nil {
			return err
		}
		if cmd.Bool("yaml") {
			return yaml.NewEncoder(os.Stdout).Encode(st)
		}
		printStatus(st)
		return nil
	},
}

func printStatus(st *instance.Status) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "pid\t%d\n", st.PID)
	fmt.Fprintf(w, "source\t%s (%s)\n", st.Source, st.Kind)
	fmt.Fprintf(w, "running\t%t every %s\n", st.Running, st.Interval)
	fmt.Fprintf(w, "input\t%s\n", st.Input)
	if st.SourceURL != "" {
		fmt.Fprintf(w, "url\t%s\n", st.SourceURL)
	}
	fmt.Fprintf(w, "output\t%s\n", st.Output)
	if !st.Changed.IsZero() {
		fmt.Fprintf(w, "changed\t%s\n", st.Changed.Format(time.DateTime))
	}
	fmt.Fprintf(w, "rotations\t%d\n", st.Rotations)
	if st.LastError != "" {
		fmt.Fprintf(w, "last error\t%s\n", st.LastError)
	}
	w.Flush()
}

var historyCommand = &cli.Command{
	Name:  "history",
	Usage: "list recent rotations",
	Flags: []cli.Flag{
		&cli.IntFlag{
			Name:    "n",
			Aliases: []string{"count"},
			Usage:   "number of rotations",
			Value:   10,
		},
	},
	Action: func(ctx context.Context, cmd *cli.Command) error {
		configDir, err := config.Dir()
		if err != nil {
			return err
		}
		store, err := history.Open(filepath.Join(configDir, history.Filename))
		if err != nil {
			return err
		}
		defer store.Close()

		rows, err := store.Recent(cmd.Int("n"))
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIME\tSOURCE\tINPUT\tRESULT")
		for _, r := range rows {
			result := filepath.Base(r.Output)
			if !r.OK() {
				result = "error: " + r.Error
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.CreatedAt.Local().Format(time.DateTime), r.Source, r.Input, result)
		}
		return w.Flush()
	},
}

var configCommand = &cli.Command{
	Name:  "config",
	Usage: "inspect the configuration",
	Commands: []*cli.Command{
		{
			Name:  "show",
			Usage: "print the effective configuration",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				cfg, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(os.Stdout)
				enc.SetIndent(2)
				return enc.Encode(cfg)
			},
		},
		{
			Name:  "path",
			Usage: "print the config file path",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				fmt.Println(cmd.String("config"))
				return nil
			},
		},
		{
			Name:  "init",
			Usage: "write the default configuration unless the file exists",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				path := cmd.String("config")
				if _, err := os.Stat(path); err == nil {
					return fmt.Errorf("%s already exists", path)
				}
				if err := config.SaveConfig(path, config.Default()); err != nil {
					return err
				}
				fmt.Println(path)
				return nil
			},
		},
	},
}
