package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"dpchat/backend/pkg/exporter"

	"github.com/spf13/cobra"
)

func openInput(cmd *cobra.Command, path string) (io.ReadCloser, error) {
	if path == "" || path == "-" {
		return io.NopCloser(cmd.InOrStdin()), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	return f, nil
}

func newExportTranscriptCmd(root *rootOptions) *cobra.Command {
	var (
		file       string
		exitMethod string
	)

	cmd := &cobra.Command{
		Use:   "export-transcript",
		Short: "Export a JSON array of transcript entries as one session",
		Long: "Reads [{\"source\":\"user\",\"text\":\"...\",\"timestamp\":\"...\"}, ...] from --file\n" +
			"(or stdin), filters out system entries and posts the envelope once.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			in, err := openInput(cmd, file)
			if err != nil {
				return err
			}
			defer in.Close()

			var entries []exporter.TranscriptEntry
			if err := json.NewDecoder(in).Decode(&entries); err != nil {
				return fmt.Errorf("decode transcript entries: %w", err)
			}

			exp := exporter.NewTranscriptExporter(root.client())
			res, err := exp.Export(cmd.Context(), entries, exporter.ParseExitMethod(exitMethod))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "-", "transcript entries file, - for stdin")
	cmd.Flags().StringVar(&exitMethod, "exit-method", string(exporter.ExitEscKey), "ESC_KEY or TIMER_EXPIRY")
	return cmd
}

// parseLine reads "source: text"; lines without a known source are user input
func parseLine(line string, now time.Time) (exporter.TranscriptEntry, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return exporter.TranscriptEntry{}, false
	}

	entry := exporter.TranscriptEntry{Source: exporter.SourceUser, Text: line, Timestamp: now}
	if prefix, rest, ok := strings.Cut(line, ":"); ok {
		switch src := exporter.Source(strings.ToLower(strings.TrimSpace(prefix))); src {
		case exporter.SourceUser, exporter.SourceAgent, exporter.SourceSystem:
			entry.Source = src
			entry.Text = strings.TrimSpace(rest)
		}
	}
	return entry, true
}

func newSessionCmd(root *rootOptions) *cobra.Command {
	var (
		duration time.Duration
		grace    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "session",
		Short: "Record a live session from stdin and export it on EOF or timer expiry",
		Long: "Each stdin line is one entry, written as \"user: text\" or \"agent: text\".\n" +
			"EOF exports with ESC_KEY; reaching --duration exports with TIMER_EXPIRY.\n" +
			"Whichever comes first wins; the session is exported once.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			session := exporter.NewSession(exporter.NewTranscriptExporter(root.client()))
			log := root.log.WithSessionID(session.ID())
			log.Info("Session started", "duration", duration.String())

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			type outcome struct {
				res *exporter.TranscriptResult
				err error
			}
			timerDone := make(chan outcome, 1)

			timerCfg := exporter.DefaultTimerConfig()
			timerCfg.Total = duration
			timerCfg.Grace = grace
			timerCfg.OnWarning = func(remaining time.Duration) {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s remaining\n", remaining)
			}
			go func() {
				res, err := session.RunTimer(ctx, timerCfg)
				timerDone <- outcome{res, err}
			}()

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				for scanner.Scan() {
					select {
					case lines <- scanner.Text():
					case <-ctx.Done():
						return
					}
				}
			}()

			for {
				select {
				case line, ok := <-lines:
					if !ok {
						res, err := session.ExportWithGrace(cmd.Context(), exporter.ExitEscKey, grace)
						if errors.Is(err, exporter.ErrAlreadyExported) {
							// the timer fired first and owns the export
							out := <-timerDone
							if out.err != nil {
								return out.err
							}
							return printJSON(cmd.OutOrStdout(), out.res)
						}
						cancel()
						if err != nil {
							return err
						}
						return printJSON(cmd.OutOrStdout(), res)
					}
					if entry, ok := parseLine(line, time.Now()); ok {
						session.Append(entry)
					}
				case out := <-timerDone:
					if out.err != nil {
						return out.err
					}
					return printJSON(cmd.OutOrStdout(), out.res)
				}
			}
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", exporter.DefaultSessionLength, "session length before the timer export")
	cmd.Flags().DurationVar(&grace, "grace", exporter.DefaultExportGrace, "how long an export may take before giving up")
	return cmd
}
