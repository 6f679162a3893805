package cli

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"financeiro/internal/core"
	"financeiro/internal/export"
	applog "financeiro/internal/log"
)

// stdio selects standard input or output in place of a file path.
const stdio = "-"

var errConfirmClear = errors.New("refusing to clear all records without --yes")

func (a *app) exportCommand() *cobra.Command {
	var format, output string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every record as CSV or JSON",
		Example: `  financeiro export --format csv
  financeiro export --format json --output backup.json
  financeiro export --format json --output - | jq .`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return core.Invalid("format", err)
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			snap := store.ExportAll(cmd.Context())

			if output == stdio {
				if err := export.Write(cmd.OutOrStdout(), f, snap); err != nil {
					return err
				}
				a.metrics.ObserveExport(string(f))
				return nil
			}
			if output == "" {
				output = export.Filename(f, core.DateOf(a.now()))
			}
			var buf bytes.Buffer
			if err := export.Write(&buf, f, snap); err != nil {
				return err
			}
			if err := os.WriteFile(output, buf.Bytes(), 0o644); err != nil {
				return fmt.Errorf("write export: %w", err)
			}
			a.metrics.ObserveExport(string(f))
			a.logger.Debug("Export written",
				applog.FieldFile, output,
				applog.FieldFormat, string(f),
				applog.FieldBytes, buf.Len())
			fmt.Fprintf(cmd.OutOrStdout(), "Exported %d payables and %d inflows to %s\n",
				len(snap.Payables), len(snap.Inflows), filepath.Clean(output))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "json", "csv or json")
	cmd.Flags().StringVarP(&output, "output", "o", "", `output file (default controle_financeiro_YYYY-MM-DD.<format>, "-" for stdout)`)
	return cmd
}

func (a *app) importCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "import FILE",
		Short: "Replace records with the collections of a JSON export",
		Long: `import reads a JSON export and replaces each collection it contains.
A collection missing from the document is left untouched. One invalid record
rejects the whole file. Use "-" to read standard input.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readInput(cmd.InOrStdin(), args[0])
			if err != nil {
				return err
			}
			set, err := export.ParseJSON(data)
			if err != nil {
				return err
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Import(cmd.Context(), set); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d payables and %d inflows\n", len(set.Payables), len(set.Inflows))
			return nil
		},
	}
}

func (a *app) clearCommand() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every payable and inflow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !yes {
				return errConfirmClear
			}
			store, err := a.recordStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := store.Clear(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "All records cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm deletion")
	return cmd
}

func readInput(stdin io.Reader, path string) ([]byte, error) {
	if path == stdio {
		return io.ReadAll(stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	return data, nil
}
