package cmd

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/export"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// newListCmd creates the 'list' subcommand.
func newListCmd() *cobra.Command {
	var (
		sent    bool
		keyword string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "Lists pending (or sent) contacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			store := appInstance.Store()
			load := store.LoadPending
			if sent {
				load = store.LoadSent
			}
			contacts, err := load(cmd.Context())
			if err != nil {
				return fmt.Errorf("load contacts: %w", err)
			}
			contacts = harvest.FilterContacts(contacts, keyword, nil)

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tEMAIL\tKEYWORD\tCOLLECTED\tSENT")
			for _, c := range contacts {
				sentAt := "-"
				if c.SentAt != nil {
					sentAt = c.SentAt.Local().Format(time.DateTime)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					c.Name, c.Email, c.Keyword, c.CollectedAt.Local().Format(time.DateTime), sentAt)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d contacts\n", len(contacts))
			return nil
		},
	}
	cmd.Flags().BoolVar(&sent, "sent", false, "list contacts that were already sent to")
	cmd.Flags().StringVar(&keyword, "keyword", "", "only contacts collected for a keyword containing this text")
	return cmd
}

// newClearCmd creates the 'clear' subcommand. Sent history is kept.
func newClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Removes all pending contacts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			if err := appInstance.Store().ClearPending(cmd.Context()); err != nil {
				return fmt.Errorf("clear pending contacts: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Pending contacts cleared")
			return nil
		},
	}
}

// legacyImporter is implemented by stores that can read the older
// two-file layout.
type legacyImporter interface {
	ImportLegacy(ctx context.Context, pendingPath, sentPath string) (int, error)
}

// newImportLegacyCmd creates the 'import-legacy' subcommand.
func newImportLegacyCmd() *cobra.Command {
	var pendingPath, sentPath string
	cmd := &cobra.Command{
		Use:   "import-legacy",
		Short: "Imports the older pending/sent JSON files into the file store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if pendingPath == "" && sentPath == "" {
				return errors.New("--pending or --sent is required")
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			importer, ok := appInstance.Store().(legacyImporter)
			if !ok {
				return fmt.Errorf("storage driver %q cannot import legacy files", appInstance.Config().Storage.Driver)
			}
			changed, err := importer.ImportLegacy(cmd.Context(), pendingPath, sentPath)
			if err != nil {
				return fmt.Errorf("import legacy files: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d contacts imported\n", changed)
			return nil
		},
	}
	cmd.Flags().StringVar(&pendingPath, "pending", "", "legacy pending contacts file")
	cmd.Flags().StringVar(&sentPath, "sent", "", "legacy sent contacts file")
	return cmd
}

// newExportCmd creates the 'export' subcommand.
func newExportCmd() *cobra.Command {
	var format, output, bucket string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports all contacts as CSV or XLSX",
		Long: `Writes pending and sent contacts to a timestamped file in the export
directory, or to a Google Cloud Storage bucket when one is given or configured.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f, err := export.ParseFormat(format)
			if err != nil {
				return err
			}
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			store := appInstance.Store()
			pending, err := store.LoadPending(ctx)
			if err != nil {
				return fmt.Errorf("load pending contacts: %w", err)
			}
			sent, err := store.LoadSent(ctx)
			if err != nil {
				return fmt.Errorf("load sent contacts: %w", err)
			}
			contacts := append(pending, sent...)

			dest, release, err := appInstance.ExportDestination(ctx, bucket, output)
			if err != nil {
				return err
			}
			defer release()

			name := export.FileName(appInstance.Config().Export.Prefix, f, appInstance.Clock().Now())
			uri, err := export.Export(ctx, dest, name, f, contacts)
			if err != nil {
				return fmt.Errorf("export contacts: %w", err)
			}
			appInstance.Logger().Info("Export command finished.", zap.String("uri", uri), zap.Int("contacts", len(contacts)))
			fmt.Fprintf(cmd.OutOrStdout(), "%d contacts exported to %s\n", len(contacts), uri)
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&output, "output", "", "local export directory (default export.dir)")
	cmd.Flags().StringVar(&bucket, "gcs-bucket", "", "write to this GCS bucket instead (default export.gcs_bucket)")
	return cmd
}
