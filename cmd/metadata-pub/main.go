package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/atd-data-tech/socrata-metadata-pub/internal/app"
	"github.com/atd-data-tech/socrata-metadata-pub/internal/config"
	"github.com/atd-data-tech/socrata-metadata-pub/internal/logging"
	"github.com/atd-data-tech/socrata-metadata-pub/internal/version"
	"github.com/atd-data-tech/socrata-metadata-pub/pkg/pipeline/redact"
)

// exitError carries the process exit code for a failed command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCommand().ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	_, _ = fmt.Fprintf(os.Stderr, "%s\n", redact.Secrets(err.Error()))
	var ee *exitError
	if errors.As(err, &ee) {
		os.Exit(ee.code)
	}
	os.Exit(2)
}

func rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "metadata-pub",
		Short: "Publish the Socrata asset metadata table",
		Long: `metadata-pub reads the public and the authenticated catalog views of a Socrata
domain, selects the assets of one owner or category, adds live row counts and
replaces the destination dataset with the result.

Settings come from the environment (and a .env file in the working directory).
METADATA_PUB_CONFIG may name a YAML file with non-secret settings.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCommand(), previewCommand(), versionCommand())
	return root
}

func runCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the pipeline and replace the destination dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			if _, err := p.Publish(cmd.Context()); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("run failed: %w", err)}
			}
			return nil
		},
	}
}

func previewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Run the pipeline and print the rows as CSV instead of publishing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := newPipeline()
			if err != nil {
				return err
			}
			if _, err := p.Preview(cmd.Context(), cmd.OutOrStdout()); err != nil {
				return &exitError{code: 1, err: fmt.Errorf("preview failed: %w", err)}
			}
			return nil
		},
	}
}

func versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "metadata-pub %s\n", version.Current)
		},
	}
}

func newPipeline() (*app.Pipeline, error) {
	if err := config.LoadDotEnv(""); err != nil {
		return nil, &exitError{code: 2, err: fmt.Errorf("config error: %w", err)}
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, &exitError{code: 2, err: fmt.Errorf("config error: %w", err)}
	}
	return app.New(cfg, logging.New(logging.FromEnv())), nil
}
