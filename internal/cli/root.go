// Package cli implements geoctl, the command-line client that runs the
// location store and proximity engine directly against a database.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stuartshay/geostore/internal/database"
	"github.com/stuartshay/geostore/internal/host"
	"github.com/stuartshay/geostore/internal/metasync"
	"github.com/stuartshay/geostore/internal/proximity"
	"github.com/stuartshay/geostore/internal/store"
)

// Version is reported by the version command
const Version = "0.1.0"

// Exit codes
const (
	exitUserError = 1
	exitSysError  = 2
)

const (
	cfgKeyDriver          = "driver"
	cfgKeyDSN             = "dsn"
	cfgKeyQueryTimeout    = "query_timeout"
	cfgKeyDefaultDistance = "default_distance"
	cfgKeyMaxLimit        = "max_limit"
	cfgKeyExportPath      = "export_path"
	cfgKeyLogLevel        = "log_level"
)

// app holds the configuration and the lazily opened backend shared by
// every subcommand
type app struct {
	v          *viper.Viper
	configFile string

	db     *database.Client
	store  *store.Store
	engine *proximity.Engine
}

// NewRootCmd creates the top-level geoctl command with its flags and
// subcommands
func NewRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:   "geoctl",
		Short: "Manage geostore locations from the command line",
		Long: "geoctl attaches locations to content objects, queries them by distance\n" +
			"and converts between distance units, working directly on the database.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.loadConfig()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configFile, "config", "", "config file (default: ./geoctl.yaml or ~/.geostore/geoctl.yaml)")
	flags.String("driver", "sqlite", "database driver: sqlite, postgres or mysql")
	flags.String("dsn", "geostore.db", "database DSN or SQLite file")
	flags.Duration("query-timeout", 10*time.Second, "bound on each store operation")
	flags.String("log-level", "warn", "log level: debug, info, warn or error")
	_ = a.v.BindPFlag(cfgKeyDriver, flags.Lookup("driver"))
	_ = a.v.BindPFlag(cfgKeyDSN, flags.Lookup("dsn"))
	_ = a.v.BindPFlag(cfgKeyQueryTimeout, flags.Lookup("query-timeout"))
	_ = a.v.BindPFlag(cfgKeyLogLevel, flags.Lookup("log-level"))

	root.AddCommand(
		newMigrateCmd(a),
		newGetCmd(a),
		newSaveCmd(a),
		newDeleteCmd(a),
		newTrashCmd(a),
		newMetaCmd(a),
		newNearbyCmd(a),
		newConvertCmd(),
		newDistanceCmd(),
		newExportCmd(a),
		newPurgeCmd(a),
	)

	return root
}

// Execute runs geoctl and exits non-zero on failure
func Execute() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := NewRootCmd().Execute(); err != nil {
		os.Exit(exitCode(err))
	}
}

// loadConfig layers defaults, the optional config file and GEOSTORE_*
// environment variables under the bound flags
func (a *app) loadConfig() error {
	v := a.v
	v.SetDefault(cfgKeyDefaultDistance, proximity.DefaultDistance)
	v.SetDefault(cfgKeyMaxLimit, 0)
	v.SetDefault(cfgKeyExportPath, ".")

	v.SetEnvPrefix("geostore")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else {
		v.SetConfigName("geoctl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(home + "/.geostore")
		}
	}
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("read config: %w", err)
		}
	}

	level, err := zerolog.ParseLevel(v.GetString(cfgKeyLogLevel))
	if err != nil {
		level = zerolog.WarnLevel
	}
	zerolog.SetGlobalLevel(level)
	return nil
}

// open connects to the configured database, creates missing tables and
// builds the store and engine. Later calls reuse the connection.
func (a *app) open(ctx context.Context) error {
	if a.db != nil {
		return nil
	}

	dialect, err := database.ParseDialect(a.v.GetString(cfgKeyDriver))
	if err != nil {
		return err
	}
	dsn := a.v.GetString(cfgKeyDSN)
	db, err := database.NewClient(dialect, dsn)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	objects := host.NewSQL(db)
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate: %w", err)
	}
	if err := objects.Migrate(ctx); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrate host tables: %w", err)
	}

	timeout := a.v.GetDuration(cfgKeyQueryTimeout)
	a.db = db
	a.store = store.New(db, objects, metasync.New(objects), store.Options{QueryTimeout: timeout})
	a.engine = proximity.NewEngine(db, proximity.Options{
		DefaultDistance: a.v.GetString(cfgKeyDefaultDistance),
		MaxLimit:        a.v.GetInt(cfgKeyMaxLimit),
		QueryTimeout:    timeout,
	})

	log.Debug().Str("driver", string(dialect)).Msg("Database opened")
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	err := a.db.Close()
	a.db = nil
	return err
}

// printJSON writes v as indented JSON to the command's output
func printJSON(cmd *cobra.Command, v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return err
}
