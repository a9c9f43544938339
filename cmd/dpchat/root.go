package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dpchat/backend/pkg/config"
	"dpchat/backend/pkg/exporter"
	"dpchat/backend/pkg/logger"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	baseURL  string
	timeout  time.Duration
	logLevel string

	log *logger.Logger
	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:          "dpchat",
		Short:        "Transcript and feedback tooling for the dpchat backend",
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			opts.cfg = config.Load()
			lc := logger.FromEnv(opts.logLevel, "text")
			lc.Output = cmd.ErrOrStderr()
			opts.log = logger.New(lc)
			logger.SetGlobal(opts.log)
		},
	}
	cmd.SetErrPrefix("dpchat:")

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.baseURL, "base-url", exporter.DefaultBaseURL, "persistence endpoint base URL")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "HTTP client timeout")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newExportTranscriptCmd(opts),
		newSessionCmd(opts),
		newFeedbackCmd(opts),
		newMongoCheckCmd(opts),
		newAdminTokenCmd(opts),
	)
	return cmd
}

func (o *rootOptions) client() *exporter.Client {
	return exporter.NewClient(o.baseURL,
		exporter.WithHTTPClient(&http.Client{Timeout: o.timeout}),
		exporter.WithLogger(o.log.Logger),
	)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}
