package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/spherical/doc-converter/internal/convert"
	"github.com/spherical/doc-converter/internal/domain"
	"github.com/spherical/doc-converter/internal/observability"
)

func newConvertCmd(a *app) *cobra.Command {
	var (
		to     string
		output string
		force  bool
	)

	cmd := &cobra.Command{
		Use:   "convert <file>",
		Short: "Convert a document",
		Example: `  docconvert convert report.pdf
  docconvert convert slides.pdf --to pptx -o deck.pptx
  docconvert convert letter.docx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			source, target, err := resolveFormats(input, to)
			if err != nil {
				return err
			}

			if output == "" {
				output = defaultOutputPath(input, target)
			}
			if !force {
				if _, err := os.Stat(output); err == nil {
					return fmt.Errorf("%s already exists (use --force to overwrite)", output)
				}
			}

			// Scratch lives next to the output so the final rename stays on one filesystem.
			scratch, err := os.MkdirTemp(filepath.Dir(output), ".docconvert-*")
			if err != nil {
				return fmt.Errorf("create scratch directory: %w", err)
			}
			defer os.RemoveAll(scratch)

			cfg := *a.cfg
			cfg.Storage.ScratchDir = scratch
			pipeline := convert.NewDefaultPipeline(&cfg, convert.NewEngines(cfg.Conversion), a.logger, observability.Noop{})

			spin := newSpinner(cmd.ErrOrStderr(), fmt.Sprintf("Converting %s to %s...", filepath.Base(input), target), !a.outputJSON)
			spin.Start()
			result, err := pipeline.Convert(cmd.Context(), domain.ConversionRequest{
				SourcePath:   input,
				SourceFormat: source,
				Target:       target,
				OriginalName: filepath.Base(input),
				Requester:    "cli",
			})
			spin.Stop()
			if err != nil {
				return errors.New(domain.Reason(err))
			}

			if err := os.Rename(result.OutputPath, output); err != nil {
				return fmt.Errorf("write output: %w", err)
			}

			if a.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"output":   output,
					"strategy": result.Strategy,
					"message":  result.Message,
					"pages":    result.Classification.PageCount,
					"pdf_type": result.Classification.DocumentType(),
					"duration": result.Duration.Seconds(),
				})
			}

			out := cmd.OutOrStdout()
			success(out, "Converted %s -> %s", input, output)
			detail(out, "Strategy", result.Strategy)
			detail(out, "Pages", fmt.Sprint(result.Classification.PageCount))
			detail(out, "Type", result.Classification.DocumentType())
			detail(out, "Details", result.Message)
			detail(out, "Time", result.Duration.Round(time.Millisecond).String())
			return nil
		},
	}

	cmd.Flags().StringVarP(&to, "to", "t", "", "target format: docx, pptx or pdf (default: docx for PDF input, pdf for Word input)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file path (default: <input-name>_converted.<ext>)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing output file")
	return cmd
}

func newClassifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "classify <file>",
		Short: "Report whether a document is text-based or scanned",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := args[0]
			source, ok := domain.FormatFromPath(input)
			if !ok {
				return fmt.Errorf("unsupported file type %q", filepath.Ext(input))
			}

			pipeline := convert.NewDefaultPipeline(a.cfg, convert.NewEngines(a.cfg.Conversion), a.logger, observability.Noop{})
			c, err := pipeline.Classify(cmd.Context(), input, source)
			if err != nil {
				return errors.New(domain.Reason(err))
			}

			if a.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"file":           input,
					"verdict":        c.Verdict,
					"pdf_type":       c.DocumentType(),
					"pages":          c.PageCount,
					"sampled_pages":  c.SampledPages,
					"chars_per_page": c.CharsPerPage,
				})
			}

			out := cmd.OutOrStdout()
			success(out, "%s is %s", input, c.DocumentType())
			detail(out, "Pages", fmt.Sprint(c.PageCount))
			if c.SampledPages > 0 {
				detail(out, "Sampled", fmt.Sprintf("%d pages, %.1f chars/page", c.SampledPages, c.CharsPerPage))
			}
			return nil
		},
	}
}

func newVersionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		// Skip config loading.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.outputJSON {
				return writeJSON(cmd.OutOrStdout(), map[string]string{"version": version})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "docconvert v%s\n", version)
			return nil
		},
	}
}

// resolveFormats derives the source format from the file name and the target
// from the flag, falling back to the default direction for the source.
func resolveFormats(input, to string) (domain.Format, domain.Format, error) {
	source, ok := domain.FormatFromPath(input)
	if !ok || (source != domain.FormatPDF && source != domain.FormatDOCX) {
		return "", "", fmt.Errorf("unsupported input %q: expected a .pdf or .docx file", filepath.Base(input))
	}

	if strings.TrimSpace(to) == "" {
		target, _ := domain.DefaultTarget(source)
		return source, target, nil
	}

	target, ok := domain.ParseFormat(to)
	if !ok || !domain.SupportsConversion(source, target) {
		return "", "", fmt.Errorf("conversion from %s to %s is not supported", source, to)
	}
	return source, target, nil
}

func defaultOutputPath(input string, target domain.Format) string {
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(filepath.Dir(input), stem+"_converted"+target.Extension())
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
