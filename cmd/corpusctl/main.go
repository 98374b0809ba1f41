// Command corpusctl builds and inspects a content-bundle index and
// rehearses tiered warm-ups against a local asset root.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/aetheric/corpus"
)

type flags struct {
	assets    string
	indexFile string
	verbose   bool

	category string
	focus    int
	realm    int

	manifest   string
	budget     time.Duration
	lifePath   int
	expression int
	soulUrge   int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	f := &flags{}

	root := &cobra.Command{
		Use:           "corpusctl",
		Short:         "Build and inspect the content-bundle index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.assets, "assets", "assets", "asset bundle root directory")
	root.PersistentFlags().StringVar(&f.indexFile, "index-file", "corpus.idx", "persisted index location")
	root.PersistentFlags().BoolVarP(&f.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newIndexCmd(f), newQueryCmd(f), newGetCmd(f), newWarmCmd(f))
	return root
}

func (f *flags) newStore() (*corpus.Store, error) {
	if _, err := os.Stat(f.assets); err != nil {
		return nil, fmt.Errorf("asset root: %w", err)
	}
	logger := zap.NewNop()
	if f.verbose {
		l, err := zap.NewDevelopment()
		if err != nil {
			return nil, err
		}
		logger = l
	}
	storage := corpus.NewFileStorage(f.indexFile)
	return corpus.NewStore(os.DirFS(f.assets), storage, corpus.WithLogger(logger)), nil
}

func newIndexCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Rebuild the index from the asset bundle and persist it",
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Discard any persisted copy so the bundle is rescanned.
			if err := os.Remove(f.indexFile); err != nil && !os.IsNotExist(err) {
				return err
			}
			store, err := f.newStore()
			if err != nil {
				return err
			}
			if err := store.EnsureIndex(cmd.Context()); err != nil {
				return err
			}
			st := store.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "indexed %d files (%d bytes) -> %s\n",
				st.IndexFiles, st.IndexSizeBytes, f.indexFile)
			return nil
		},
	}
}

func newQueryCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query",
		Short: "List index entries matching the given axis filters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := f.newStore()
			if err != nil {
				return err
			}
			if err := store.EnsureIndex(cmd.Context()); err != nil {
				return err
			}
			entries := store.Query(corpus.Filter{
				Category: f.category,
				Focus:    f.focus,
				Realm:    f.realm,
			})
			for _, e := range entries {
				fmt.Fprintf(cmd.OutOrStdout(), "%-40s %8d  %016x  %s\n",
					e.Path, e.Size, e.Checksum, e.Preview)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d entries\n", len(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&f.category, "category", "", "category filter")
	cmd.Flags().IntVar(&f.focus, "focus", 0, "focus filter (0 = any)")
	cmd.Flags().IntVar(&f.realm, "realm", 0, "realm filter (0 = any)")
	return cmd
}

func newGetCmd(f *flags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <category> <focus> <realm>",
		Short: "Print the content for one key",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			focus, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("focus: %w", err)
			}
			realm, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("realm: %w", err)
			}
			store, err := f.newStore()
			if err != nil {
				return err
			}
			content, err := store.Get(cmd.Context(), corpus.Key{
				Category: args[0],
				Focus:    focus,
				Realm:    realm,
			})
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func newWarmCmd(f *flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "warm",
		Short: "Run a tiered warm-up from a manifest and print the report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := os.ReadFile(f.manifest)
			if err != nil {
				return err
			}
			manifest, err := corpus.ParseManifest(data)
			if err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v (treating tiers as empty)\n", err)
			}
			store, err := f.newStore()
			if err != nil {
				return err
			}
			orch := corpus.NewOrchestrator(store)
			defer orch.Close()

			profile := corpus.Profile{
				LifePath:   f.lifePath,
				Expression: f.expression,
				SoulUrge:   f.soulUrge,
			}
			report := orch.LoadTiered(context.Background(), manifest, profile, f.budget)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "elapsed:        %s\n", report.Elapsed)
			fmt.Fprintf(out, "loaded:         %d\n", len(report.Loaded))
			fmt.Fprintf(out, "failed:         %d\n", len(report.Failed))
			fmt.Fprintf(out, "cancelled:      %d\n", len(report.Cancelled))
			fmt.Fprintf(out, "skipped:        %d\n", len(report.Skipped))
			fmt.Fprintf(out, "near-term:      %d scheduled\n", report.NearTermScheduled)
			fmt.Fprintf(out, "budget exceeded: %v\n", report.BudgetExceeded)
			for key, ferr := range report.Failed {
				fmt.Fprintf(out, "  failed %s: %v\n", key, ferr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&f.manifest, "manifest", "manifest.yaml", "tier manifest file")
	cmd.Flags().DurationVar(&f.budget, "budget", 500*time.Millisecond, "essential tier budget")
	cmd.Flags().IntVar(&f.lifePath, "life-path", 0, "profile life path number")
	cmd.Flags().IntVar(&f.expression, "expression", 0, "profile expression number")
	cmd.Flags().IntVar(&f.soulUrge, "soul-urge", 0, "profile soul urge number")
	return cmd
}
