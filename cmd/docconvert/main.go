// Package main provides the docconvert CLI entrypoint.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/spherical/doc-converter/internal/config"
	"github.com/spherical/doc-converter/internal/observability"
)

const version = "1.0.0"

// app carries global flags and the state PersistentPreRunE builds from them.
type app struct {
	cfgFile    string
	outputJSON bool
	verbose    bool
	noColor    bool

	cfg    *config.Config
	logger *observability.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "docconvert",
		Short: "Convert documents between PDF, Word and PowerPoint",
		Long: `docconvert converts documents locally using the same strategy pipeline as the API:

- PDF to Word (docx) or PowerPoint (pptx)
- Word (docx) to PDF

Scanned PDFs are detected and routed through OCR first.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_ = godotenv.Load()

			var err error
			a.cfg, err = config.Load(a.cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			if a.noColor || a.outputJSON {
				color.NoColor = true
			}

			level := "warn"
			if a.verbose {
				level = "debug"
			}
			a.logger = observability.NewLogger(observability.LogConfig{
				Level:       level,
				Format:      "console",
				Output:      cmd.ErrOrStderr(),
				ServiceName: "docconvert",
			})
			return nil
		},
	}

	root.PersistentFlags().StringVarP(&a.cfgFile, "config", "c", "", "config file path (default: uses env vars)")
	root.PersistentFlags().BoolVar(&a.outputJSON, "json", false, "output in JSON format")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable verbose logging")
	root.PersistentFlags().BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(newConvertCmd(a))
	root.AddCommand(newClassifyCmd(a))
	root.AddCommand(newVersionCmd(a))
	return root
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("✗ %v", err))
		os.Exit(1)
	}
}
