package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/cfdi-ledger/internal/common"
	"github.com/joseph-ayodele/cfdi-ledger/internal/entity"
	"github.com/joseph-ayodele/cfdi-ledger/internal/ingest"
	"github.com/joseph-ayodele/cfdi-ledger/internal/naming"
	"github.com/joseph-ayodele/cfdi-ledger/internal/store"
)

func newCategoriesCmd(a *app) *cobra.Command {
	var keysOnly bool
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the category tree",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if keysOnly {
				return a.printJSON(a.tree.Keys())
			}
			return a.printJSON(a.tree.Items)
		},
	}
	cmd.Flags().BoolVar(&keysOnly, "keys", false, "Print only the leaf category keys")
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	var page, pageSize int
	var origin string
	cmd := &cobra.Command{
		Use:   "list <category>",
		Short: "List one page of records, ordered by name without tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			res, err := a.store.List(cmd.Context(), store.ListRequest{
				Category: args[0],
				Page:     page,
				PageSize: pageSize,
				Origin:   origin,
			})
			if err != nil {
				return err
			}
			return a.printJSON(res)
		},
	}
	cmd.Flags().IntVar(&page, "page", 1, "Page number, starting at 1")
	cmd.Flags().IntVar(&pageSize, "page-size", 0, "Records per page (0 uses DEFAULT_PAGE_SIZE)")
	cmd.Flags().StringVar(&origin, "origin", "", "Only records with this origin tag")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> <archivo>",
		Short: "Show one record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			rec, err := a.store.Get(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return a.printJSON(rec)
		},
	}
}

func newCountCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "count <category>",
		Short: "Count the entries of a category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			n, err := a.store.Count(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.printJSON(map[string]int{"total": n})
		},
	}
}

func newUploadCmd(a *app) *cobra.Command {
	var origin string
	cmd := &cobra.Command{
		Use:   "upload <category> <file.pdf>...",
		Short: "Store PDF documents under an origin",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			if origin == "" {
				origin = a.cfg.Origins.Default
			}
			uploads := make([]store.Upload, 0, len(args)-1)
			for _, p := range args[1:] {
				content, err := os.ReadFile(p)
				if err != nil {
					return common.IOFailure("read upload", err)
				}
				uploads = append(uploads, store.Upload{Name: filepath.Base(p), Content: content})
			}
			results := a.store.CreateFromDocuments(cmd.Context(), args[0], origin, uploads)
			if err := a.printJSON(results); err != nil {
				return err
			}
			for _, r := range results {
				if r.Err != nil {
					return fmt.Errorf("some uploads failed")
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin tag (defaults to DEFAULT_ORIGIN)")
	return cmd
}

// amountFields are filled with "0.00" when a manual record omits them.
var amountFields = []string{"subtotal", "total_deducciones", "total_neto"}

func newManualCmd(a *app) *cobra.Command {
	var origin string
	var set []string
	cmd := &cobra.Command{
		Use:   "manual <category>",
		Short: "Create a structured record from field values",
		Example: `  ledger manual Honorarios --origin Campo \
    --set rfc_emisor=ABCD010101AB1 --set subtotal=1500.00`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			if origin == "" {
				origin = a.cfg.Origins.Default
			}
			var fields entity.Fields
			for _, name := range amountFields {
				*fields.Slot(name) = entity.StrPtr("0.00")
			}
			if err := applyAssignments(&fields, set); err != nil {
				return err
			}
			archivo, err := a.store.CreateStructured(cmd.Context(), args[0], origin, fields)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{"archivo": archivo})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin tag (defaults to DEFAULT_ORIGIN)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Field assignment name=value (repeatable)")
	return cmd
}

func newSetOriginCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set-origin <category> <archivo> <origin>",
		Short: "Move a record to another origin by renaming it",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			archivo, err := a.store.RenameOrigin(cmd.Context(), args[0], args[1], args[2])
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{"archivo": archivo})
		},
	}
}

func newEditCmd(a *app) *cobra.Command {
	var origin string
	var set, unset []string
	cmd := &cobra.Command{
		Use:   "edit <category> <archivo>",
		Short: "Replace a record's fields; documents become structured records",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			ctx := cmd.Context()
			rec, err := a.store.Get(ctx, args[0], args[1])
			if err != nil {
				return err
			}
			fields := rec.Fields
			if err := applyAssignments(&fields, set); err != nil {
				return err
			}
			for _, name := range unset {
				slot := fields.Slot(name)
				if slot == nil {
					return common.InvalidInput("unknown field %q", name)
				}
				*slot = nil
			}
			if origin == "" {
				origin = a.cfg.Origins.Default
				if tag, ok := naming.Tag(rec.Archivo); ok && tag != "" {
					origin = tag
				}
			}
			archivo, err := a.store.Edit(ctx, args[0], rec.Archivo, fields, origin)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]string{"archivo": archivo})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "New origin tag (defaults to the current one)")
	cmd.Flags().StringArrayVar(&set, "set", nil, "Field assignment name=value (repeatable)")
	cmd.Flags().StringArrayVar(&unset, "unset", nil, "Field to clear (repeatable)")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <category> <archivo>",
		Short: "Remove a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			if err := a.store.Delete(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			return a.printJSON(map[string]string{"deleted": args[1]})
		},
	}
}

func newSummaryCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Total every category by origin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			sum, err := a.aggregator.Summary(cmd.Context())
			if err != nil {
				return err
			}
			return a.printJSON(sum)
		},
	}
}

func newExportCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "export summary | export records <category>",
		Short: "Write an XLSX workbook",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var data []byte
			var err error
			switch args[0] {
			case "summary":
				data, err = a.exporter.ExportSummaryXLSX(cmd.Context())
			case "records":
				if len(args) != 2 {
					return common.InvalidInput("export records needs a category")
				}
				if err := a.category(args[1]); err != nil {
					return err
				}
				data, err = a.exporter.ExportRecordsXLSX(cmd.Context(), args[1])
			default:
				return common.InvalidInput("unknown export %q", args[0])
			}
			if err != nil {
				return err
			}
			if output == "" {
				output = fmt.Sprintf("%s-%s.xlsx", args[0], time.Now().Format("20060102-150405"))
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return common.IOFailure("write export", err)
			}
			return a.printJSON(map[string]any{"file": output, "bytes": len(data)})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output path")
	return cmd
}

func newImportCmd(a *app) *cobra.Command {
	var origin string
	var skipHidden, consume bool
	cmd := &cobra.Command{
		Use:   "import <category> <dir>",
		Short: "Store every PDF found under a directory",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			if origin == "" {
				origin = a.cfg.Origins.Default
			}
			if err := common.ValidateOriginTag(origin); err != nil {
				return err
			}
			results, stats, err := a.importer.ImportDirectory(cmd.Context(), args[1],
				ingest.Target{Category: args[0], Origin: origin, Consume: consume}, skipHidden)
			if err != nil {
				return err
			}
			return a.printJSON(map[string]any{"stats": stats, "results": results})
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin tag (defaults to DEFAULT_ORIGIN)")
	cmd.Flags().BoolVar(&skipHidden, "skip-hidden", true, "Skip dot files and directories")
	cmd.Flags().BoolVar(&consume, "consume", false, "Delete source files once stored")
	return cmd
}

func newWatchCmd(a *app) *cobra.Command {
	var origin string
	var debounce time.Duration
	var initial, keep bool
	cmd := &cobra.Command{
		Use:   "watch <category> <dir>...",
		Short: "Import PDFs dropped into inbox directories until interrupted",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.category(args[0]); err != nil {
				return err
			}
			if origin == "" {
				origin = a.cfg.Origins.Default
			}
			if err := common.ValidateOriginTag(origin); err != nil {
				return err
			}
			err := a.importer.Watch(cmd.Context(),
				ingest.WatchConfig{Roots: args[1:], InitialScan: initial, Debounce: debounce, SkipHidden: true},
				ingest.Target{Category: args[0], Origin: origin, Consume: !keep})
			if cmd.Context().Err() != nil {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&origin, "origin", "", "Origin tag (defaults to DEFAULT_ORIGIN)")
	cmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before a changed file is imported")
	cmd.Flags().BoolVar(&initial, "initial-scan", true, "Import documents already in the inbox")
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave imported files in the inbox")
	return cmd
}

func newExtractCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "extract <file.pdf>",
		Short: "Print the fields recovered from a document without storing it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := os.ReadFile(args[0])
			if err != nil {
				return common.IOFailure("read document", err)
			}
			return a.printJSON(a.engine.ExtractDocument(cmd.Context(), a.source, content))
		},
	}
}

// applyAssignments sets fields from name=value pairs. An empty value clears
// the field.
func applyAssignments(fields *entity.Fields, assignments []string) error {
	for _, kv := range assignments {
		name, value, ok := strings.Cut(kv, "=")
		if !ok {
			return common.InvalidInput("expected name=value, got %q", kv)
		}
		slot := fields.Slot(strings.TrimSpace(name))
		if slot == nil {
			return common.InvalidInput("unknown field %q", name)
		}
		if value == "" {
			*slot = nil
			continue
		}
		*slot = entity.StrPtr(value)
	}
	return nil
}
