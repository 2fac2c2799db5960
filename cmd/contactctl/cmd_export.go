package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/portfolio-contact/backend/internal/dashboard"
	"github.com/portfolio-contact/backend/internal/repository"
	"github.com/portfolio-contact/backend/internal/storage"
	"github.com/spf13/cobra"
)

var (
	exportStatus, exportSearch, exportSort string
	exportFormat, exportDir, exportName    string
	exportStdout                           bool
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the filtered messages as CSV or mbox",
	Long: `Export the filtered message list.

The file is written below --dir as messages_YYYY-MM-DD.<format> unless
--name says otherwise. --stdout writes to standard output instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportFormat != dashboard.FormatCSV && exportFormat != dashboard.FormatMbox {
			return fmt.Errorf("unknown format %q", exportFormat)
		}
		e, err := setup(cmd.Context())
		if err != nil {
			return err
		}
		defer e.close()

		f := dashboard.ParseFilter(exportStatus, exportSearch, exportSort)
		if exportStdout {
			_, err := runExport(cmd.Context(), cmd.OutOrStdout(), e.repo, e.renderer, f, exportFormat)
			return err
		}

		name := exportName
		if name == "" {
			name = dashboard.ExportFilename(time.Now(), e.renderer.Location(), exportFormat)
		}
		path, n, err := exportToStorage(cmd.Context(), storage.NewLocalStorage(exportDir), name, e.repo, e.renderer, f, exportFormat)
		if err != nil {
			return err
		}
		slog.Info("export written", "path", path, "messages", n)
		return nil
	},
}

func init() {
	addFilterFlags(exportCmd, &exportStatus, &exportSearch, &exportSort)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", dashboard.FormatCSV, "Export format: csv or mbox")
	exportCmd.Flags().StringVar(&exportDir, "dir", ".", "Directory the export is written to")
	exportCmd.Flags().StringVar(&exportName, "name", "", "File name below --dir (default messages_YYYY-MM-DD.<format>)")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Write the export to standard output")
}

func exportToStorage(ctx context.Context, st storage.Storage, name string, repo repository.ContactRepository, r *dashboard.Renderer, f dashboard.Filter, format string) (string, int, error) {
	var buf bytes.Buffer
	n, err := runExport(ctx, &buf, repo, r, f, format)
	if err != nil {
		return "", 0, err
	}
	path, err := st.Save(ctx, name, &buf)
	return path, n, err
}

func runExport(ctx context.Context, out io.Writer, repo repository.ContactRepository, r *dashboard.Renderer, f dashboard.Filter, format string) (int, error) {
	state, err := loadView(ctx, repo, f)
	if err != nil {
		return 0, err
	}
	switch format {
	case dashboard.FormatMbox:
		err = r.ExportMbox(out, state.View)
	default:
		err = r.ExportCSV(out, state.View)
	}
	return len(state.View), err
}
