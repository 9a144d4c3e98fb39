package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/folio/internal/content"
	"github.com/conneroisu/folio/internal/errors"
	"github.com/conneroisu/folio/internal/mockdata"
)

var (
	seedCount   int
	seedAuthors int
	seedValue   int64
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill the database with demo posts",
	Long: `Migrate the database and insert generated demo posts, most of them
published and some drafts or trashed.

Examples:
  folio seed                        # 10 posts by 3 authors
  folio seed --count 50 --seed 7    # reproducible set of 50 posts`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().IntVarP(&seedCount, "count", "n", 10, "Number of posts to generate")
	seedCmd.Flags().IntVar(&seedAuthors, "authors", 3, "Number of distinct authors")
	seedCmd.Flags().Int64Var(&seedValue, "seed", 0, "Random seed (0 uses the current time)")
	addDatabaseFlags(seedCmd.Flags())
	bindDatabaseFlags(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	if seedCount < 1 {
		return fmt.Errorf("count must be at least 1, got %d", seedCount)
	}

	ctx := cmd.Context()
	a, err := newApp(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer a.Close()

	if _, err := a.migrate(ctx); err != nil {
		return err
	}

	seed := seedValue
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rows := mockdata.NewGenerator(seed).Posts(seedCount, seedAuthors)

	ids, err := a.store.InsertPosts(ctx, rows)
	if err != nil {
		return errors.NewEnhancedError("Failed to seed database", err, nil)
	}

	published := 0
	for _, row := range rows {
		if row.State == content.Published.String() {
			published++
		}
	}
	a.logger.Info(ctx, "Database seeded", "posts", len(ids), "published", published, "seed", seed)
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d posts (%d published)\n", len(ids), published)
	return nil
}
