package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/eleven-am/playbook"
	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// app carries the state shared by every subcommand.
type app struct {
	out     io.Writer
	v       *viper.Viper
	cfgFile string
	config  *playbook.Config
	logger  *slog.Logger
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out, v: viper.New()}

	root := &cobra.Command{
		Use:   "playbook",
		Short: "Build, resolve and export playbook pipelines",
		Long: `Build typed analysis pipelines from playbook files, resolve them and
export their provenance as IEEE-2791 BioCompute Objects.

Configuration is read from --config, ./playbook.yaml or
~/.config/playbook/config.yaml, then from PLAYBOOK_* environment variables
(for example PLAYBOOK_STORAGE_BACKEND=sqlite), then from flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}
	root.SetOut(out)

	defaults := playbook.DefaultConfig()
	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (default: ./playbook.yaml or ~/.config/playbook/config.yaml)")
	flags.String("data-dir", ".playbook", "directory holding chains and published documents")
	flags.String("storage", string(defaults.Storage.Backend), "storage backend: badger, sqlite or memory")
	flags.String("compute", string(defaults.Compute.Mode), "compute mode: local, process, grpc or none")
	flags.String("compute-address", "", "address of a compute worker when --compute=grpc")
	flags.String("log-level", "info", "log level: debug, info, warn or error")
	flags.String("log-format", "text", "log format: text or json")

	_ = a.v.BindPFlag("data_dir", flags.Lookup("data-dir"))
	_ = a.v.BindPFlag("storage.backend", flags.Lookup("storage"))
	_ = a.v.BindPFlag("compute.mode", flags.Lookup("compute"))
	_ = a.v.BindPFlag("compute.address", flags.Lookup("compute-address"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", flags.Lookup("log-format"))

	root.AddCommand(
		newCatalogCmd(a),
		newRunCmd(a),
		newExportCmd(a),
		newShowCmd(a),
		newBCOCmd(a),
		newWorkerCmd(a),
	)
	return root
}

func (a *app) init() error {
	a.v.SetEnvPrefix("PLAYBOOK")
	a.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	a.v.AutomaticEnv()

	if a.cfgFile != "" {
		a.v.SetConfigFile(a.cfgFile)
	} else {
		a.v.SetConfigName("playbook")
		a.v.SetConfigType("yaml")
		a.v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			a.v.AddConfigPath(filepath.Join(home, ".config", "playbook"))
		}
	}
	if err := a.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || a.cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	logger, err := newLogger(a.v.GetString("log.level"), a.v.GetString("log.format"))
	if err != nil {
		return err
	}
	a.logger = logger

	config := playbook.DefaultConfig()
	if err := a.v.Unmarshal(config); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	config.Logger = logger
	a.config = config
	return nil
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}
	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q", format)
	}
}

func (a *app) manager(opts ...playbook.Option) (*playbook.Manager, error) {
	return playbook.New(a.config, opts...)
}

// load resolves ref as a playbook file when one exists at that path, and as
// a persisted chain id otherwise.
func (a *app) load(ctx context.Context, m *playbook.Manager, ref string) (playbook.Chain, *playbook.Playbook, error) {
	if _, err := os.Stat(ref); err == nil {
		pb, err := playbook.LoadPlaybookFile(ref)
		if err != nil {
			return playbook.Chain{}, nil, err
		}
		c, _, err := m.LoadPlaybook(ctx, pb)
		return c, pb, err
	}
	c, err := m.Chain(ctx, ref)
	return c, nil, err
}

func (a *app) printJSON(v any) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
