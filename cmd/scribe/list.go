package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/MrWong99/scribe/internal/catalog"
	"github.com/MrWong99/scribe/internal/observe"
)

func newListCmd(env *environment, f *rootFlags) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list [flags]",
		Short: "List transcription projects, newest first",
		Long: "List transcription projects. Entries come from the PostgreSQL catalog when\n" +
			"catalog.postgres_dsn is configured, otherwise from scanning the output root.",
		Args: exactArgs(0),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.load()
			if err != nil {
				return err
			}
			logger := observe.NewLogger(env.stderr, "warn", string(cfg.Log.Format))

			var store catalog.Store = catalog.NewDir(cfg.OutputRoot, logger)
			if dsn := cfg.Catalog.PostgresDSN; dsn != "" {
				pg, err := catalog.OpenPostgres(cmd.Context(), dsn)
				if err != nil {
					return err
				}
				defer pg.Close()
				store = pg
			}

			return listEntries(cmd.Context(), store, env.stdout, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output entries as JSON")
	return cmd
}

func listEntries(ctx context.Context, store catalog.Store, w io.Writer, jsonOutput bool) error {
	entries, err := store.List(ctx)
	if err != nil {
		return err
	}

	if jsonOutput {
		if entries == nil {
			entries = []catalog.Entry{}
		}
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal entries: %w", err)
		}
		fmt.Fprintln(w, string(data))
		return nil
	}

	if len(entries) == 0 {
		fmt.Fprintln(w, "No projects found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 3, ' ', 0)
	fmt.Fprintln(tw, "PROJECT\tMODEL\tLANGUAGE\tSEGMENTS\tWORDS\tCONFIDENCE\tTRANSCRIBED")
	for _, e := range entries {
		conf := "-"
		if e.MeanConfidence != nil {
			conf = fmt.Sprintf("%.2f", *e.MeanConfidence)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\t%s\n",
			e.Dir, e.Model, e.Language, e.Segments, e.Words, conf,
			e.TranscribedAt.Local().Format("2006-01-02 15:04"))
	}
	return tw.Flush()
}
