package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"financeiro/internal/backend"
	"financeiro/internal/config"
	"financeiro/internal/kv"
	applog "financeiro/internal/log"
	"financeiro/internal/metrics"
	"financeiro/internal/services"
)

// Options customize the command tree; the zero value runs against the
// configured backend with the real clock and standard streams.
type Options struct {
	// Store replaces the configured backend when set.
	Store kv.Store
	Now   func() time.Time
	Out   io.Writer
	Err   io.Writer
}

type app struct {
	opts    Options
	cfgFile string
	level   string
	jsonOut bool

	cfg     *config.Config
	logger  *applog.Logger
	metrics *metrics.Metrics
	store   *services.RecordStore
	backend *backend.Result
}

// NewRootCommand builds the financeiro command tree.
func NewRootCommand(opts Options) *cobra.Command {
	root, _ := newRoot(opts)
	return root
}

func newRoot(opts Options) (*cobra.Command, *app) {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Err == nil {
		opts.Err = os.Stderr
	}
	a := &app{opts: opts}

	root := &cobra.Command{
		Use:   "financeiro",
		Short: "Controle Financeiro Comercial: payables and inflows bookkeeping",
		Long: `financeiro keeps payables (contas) and inflows (entradas) in a local
store and produces monthly reports, dashboards and CSV/JSON exports.

Example:
  financeiro payable add --company "Energia" --amount 250,90 --due 2024-03-10
  financeiro inflow add --date 2024-03-05 --amount 1200 --category pix
  financeiro report --period 2024-03
  financeiro serve`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(opts.Out)
	root.SetErr(opts.Err)

	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "TOML config file (overrides "+config.ConfigFileEnv+")")
	root.PersistentFlags().StringVar(&a.level, "log-level", "", "log level: debug, info, warn, error")
	root.PersistentFlags().BoolVar(&a.jsonOut, "json", false, "print JSON instead of tables")

	root.AddCommand(
		a.serveCommand(),
		a.payableCommand(),
		a.inflowCommand(),
		a.reportCommand(),
		a.dashboardCommand(),
		a.evolutionCommand(),
		a.exportCommand(),
		a.importCommand(),
		a.clearCommand(),
	)
	return root, a
}

// Execute runs the command tree and prints a failure as a single line.
func Execute(ctx context.Context, opts Options, args []string) int {
	root, a := newRoot(opts)
	defer a.close()
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(root.ErrOrStderr(), "Error: %v\n", err)
		return 1
	}
	return 0
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	LoadEnvFile()
	if a.cfgFile != "" {
		if err := os.Setenv(config.ConfigFileEnv, a.cfgFile); err != nil {
			return err
		}
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if a.level != "" {
		cfg.LogLevel = a.level
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	logger, err := SetupLogger(cfg, a.opts.Err, applog.ComponentCLI)
	if err != nil {
		return err
	}
	a.cfg, a.logger, a.metrics = cfg, logger, metrics.New()
	return nil
}

// recordStore opens the store on first use; serve never needs one.
func (a *app) recordStore(ctx context.Context) (*services.RecordStore, error) {
	if a.store != nil {
		return a.store, nil
	}
	if a.opts.Store != nil {
		a.store = services.NewRecordStore(a.opts.Store,
			services.WithClock(a.opts.Now),
			services.WithLogger(a.logger.WithComponent(applog.ComponentStore).Logger),
			services.WithObserver(a.metrics))
		return a.store, nil
	}
	store, res, err := OpenRecordStore(ctx, a.cfg, a.logger, a.metrics)
	if err != nil {
		return nil, err
	}
	a.store, a.backend = store, res
	return store, nil
}

func (a *app) close() error {
	if a.backend == nil || a.backend.Cleanup == nil {
		return nil
	}
	err := a.backend.Cleanup()
	a.backend = nil
	return err
}

func (a *app) now() time.Time { return a.opts.Now() }

func (a *app) printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
