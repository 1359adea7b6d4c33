package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reportrelay/internal/models"
	"reportrelay/internal/services"
	"reportrelay/internal/utils"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type connectFunc func(ctx context.Context, logger *zap.Logger) (*services.ReportService, func(), error)

type cli struct {
	debug   bool
	connect connectFunc

	logger  *zap.Logger
	reports *services.ReportService
	closeFn func()
}

// newRootCommand builds the command tree. The returned func releases the
// connection and must run after Execute.
func newRootCommand(connect connectFunc) (*cobra.Command, func()) {
	c := &cli{connect: connect}

	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Operate the report contract from the command line",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup(cmd)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().
		BoolVarP(&c.debug, "debug", "D", false, "enable debug logging")

	// Subcommands
	rootCmd.AddCommand(c.healthCommand())
	rootCmd.AddCommand(c.countCommand())
	rootCmd.AddCommand(c.getCommand())
	rootCmd.AddCommand(c.submitCommand())

	return rootCmd, c.teardown
}

func (c *cli) setup(cmd *cobra.Command) error {
	level := zapcore.WarnLevel
	if c.debug {
		level = zapcore.DebugLevel
	}
	zc := zap.NewDevelopmentConfig()
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.OutputPaths = []string{"stderr"}
	logger, err := zc.Build()
	if err != nil {
		return err
	}
	c.logger = logger

	reports, closeFn, err := c.connect(cmd.Context(), logger)
	if err != nil {
		return err
	}
	c.reports = reports
	c.closeFn = closeFn
	return nil
}

func (c *cli) teardown() {
	if c.closeFn != nil {
		c.closeFn()
	}
	if c.logger != nil {
		_ = c.logger.Sync()
	}
}

func (c *cli) healthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show the chain id and contract address",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := c.reports.Health(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), h)
		},
	}
}

func (c *cli) countCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Show the number of stored reports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := c.reports.Count(cmd.Context())
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]uint64{"count": n})
		},
	}
}

func (c *cli) getCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := utils.ParseReportID(args[0])
			if err != nil {
				return err
			}
			view, err := c.reports.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), view)
		},
	}
}

func (c *cli) submitCommand() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a report read from a JSON file and wait for it to be mined",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			req, err := readRequest(cmd.InOrStdin(), file)
			if err != nil {
				return err
			}
			receipt, err := c.reports.Submit(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), models.SubmitResult{
				Success:         true,
				TransactionHash: receipt.TxHash.Hex(),
				BlockNumber:     receipt.BlockNumber,
			})
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "-", "report JSON file, - for stdin")
	return cmd
}

func readRequest(stdin io.Reader, file string) (models.ReportRequest, error) {
	var req models.ReportRequest

	r := stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return req, err
		}
		defer f.Close()
		r = f
	}

	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return req, fmt.Errorf("read report: %w", err)
	}
	return req, nil
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
