package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/tordrt/schemamodeler"
	"github.com/tordrt/schemamodeler/internal/config"
	"github.com/tordrt/schemamodeler/internal/logger"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// app carries global flags and the lazily built components shared by the
// subcommands
type app struct {
	configPath string
	logLevel   string
	dbURL      string

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	cfg     *config.Config
	log     *logrus.Logger
	svc     *schemamodeler.Service
	closers []io.Closer
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "schemamodeler",
		Short: "Derive logical models and UML diagrams from database schemas",
		Long: `schemamodeler reflects the physical schema of a PostgreSQL, MySQL or SQLite
database and asks a text-generation model to turn it into a logical data model,
a business description, or a PlantUML class diagram.

Examples:
  schemamodeler provision --db-url sqlite://northwind.db
  schemamodeler reflect --db-url sqlite://northwind.db --format markdown
  schemamodeler generate --role data_modeler --role uml_modeler --render`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	rootCmd.SetIn(a.stdin)
	rootCmd.SetOut(a.stdout)
	rootCmd.SetErr(a.stderr)

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn or error (default from config)")
	rootCmd.PersistentFlags().StringVar(&a.dbURL, "db-url", "", "Database URL: postgres://, mysql:// or sqlite:// (default from config)")

	rootCmd.AddCommand(
		newProvisionCmd(a),
		newTablesCmd(a),
		newReflectCmd(a),
		newGenerateCmd(a),
		newRenderCmd(a),
		newEncodeCmd(),
		newServeCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// setup loads configuration and the logger; flags override file and env
func (a *app) setup() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dbURL != "" {
		cfg.DatabaseURL = a.dbURL
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, closer, err := logger.NewTo(a.stderr, cfg.Log.Level, cfg.Log.File)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, closer)
	a.cfg = cfg
	a.log = log
	return nil
}

// service builds the shared Service on first use
func (a *app) service(ctx context.Context) (*schemamodeler.Service, error) {
	if a.svc != nil {
		return a.svc, nil
	}
	svc, err := schemamodeler.NewService(ctx, a.cfg, a.log)
	if err != nil {
		return nil, err
	}
	a.svc = svc
	a.closers = append(a.closers, svc)
	return svc, nil
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			fmt.Fprintf(a.stderr, "warning: %v\n", err)
		}
	}
	a.closers = nil
}

// run executes the CLI and returns the process exit code
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{stdin: stdin, stdout: stdout, stderr: stderr}
	defer a.close()

	rootCmd := newRootCmd(a)
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

func parseTableList(tables string) []string {
	if tables == "" {
		return nil
	}
	list := strings.Split(tables, ",")
	for i, t := range list {
		list[i] = strings.TrimSpace(t)
	}
	return list
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
