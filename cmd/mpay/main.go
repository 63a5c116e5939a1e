// Command mpay manages the shared payments ledger from the shell.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/iho/mpay/internal/infrastructure/config"
	"github.com/iho/mpay/internal/infrastructure/logger"
)

// errViolations makes check exit non-zero without printing an extra error.
var errViolations = errors.New("ledger has consistency violations")

type cli struct {
	envFile string
	as      string
	output  string
	verbose bool

	cfg *config.Config
	log zerolog.Logger
	app *app

	// open builds the use cases; tests replace it.
	open func(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*app, error)
}

func main() {
	c := &cli{open: openApp}

	err := c.rootCommand().ExecuteContext(context.Background())
	c.close()

	if err != nil {
		if !errors.Is(err, errViolations) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func (c *cli) rootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "mpay",
		Short:         "Shared payments ledger",
		Long:          `Record who paid whom, run standing orders and check the ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
	}

	rootCmd.PersistentFlags().StringVar(&c.envFile, "env-file", ".env", "dotenv file with configuration")
	rootCmd.PersistentFlags().StringVar(&c.as, "as", "", "act as USER (default $MPAY_USER)")
	rootCmd.PersistentFlags().StringVarP(&c.output, "output", "o", formatTable, "output format: table, json or csv")
	rootCmd.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log debug output")

	rootCmd.AddCommand(
		c.migrateCommand(),
		c.userCommand(),
		c.payCommand(),
		c.importCommand(),
		c.balanceCommand(),
		c.historyCommand(),
		c.orderCommand(),
		c.runDueCommand(),
		c.checkCommand(),
		c.tagCommand(),
		c.agentCommand(),
	)

	return rootCmd
}

func (c *cli) setup() error {
	switch c.output {
	case formatTable, formatJSON, formatCSV:
	default:
		return fmt.Errorf("unknown output format %q", c.output)
	}

	if c.cfg == nil {
		cfg, err := config.LoadFile(c.envFile)
		if err != nil {
			return err
		}
		c.cfg = cfg
	}

	level := c.cfg.LogLevel
	if c.verbose {
		level = "debug"
	} else if level == "info" {
		level = "warn"
	}

	c.log = logger.New(logger.Config{Level: level, Format: "console"})

	if c.as == "" {
		c.as = c.cfg.ActingUser
	}

	return nil
}

// ledger opens the store on first use.
func (c *cli) ledger(ctx context.Context) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}

	a, err := c.open(ctx, c.cfg, c.log)
	if err != nil {
		return nil, err
	}

	c.app = a

	return a, nil
}

func (c *cli) close() {
	if c.app != nil && c.app.close != nil {
		c.app.close()
	}
}
