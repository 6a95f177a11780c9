package commands

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/intellect4all/pma-engine/pma"
)

func insertCmd() *cobra.Command {
	var (
		count   int
		segCap  int
		seed    int64
		verbose bool
	)

	cmd := &cobra.Command{
		Use:   "insert",
		Short: "Insert a batch of random keys and report the resulting layout",
		Long: `Builds a fresh Packed Memory Array, inserts --count random int64 keys
one at a time, and prints the insert timing and the final size. With
--verbose it also lists the first 10 entries in sorted order. The
segment layout is not printed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count <= 0 {
				return errors.Errorf("--count must be > 0, got %d", count)
			}

			cfg := pma.DefaultConfig()
			cfg.SegmentCapacity = segCap
			engine, err := pma.New(cfg)
			if err != nil {
				return errors.Wrap(err, "failed to create PMA")
			}

			rng := rand.New(rand.NewSource(seed))
			start := time.Now()
			for i := 0; i < count; i++ {
				k := rng.Int63n(int64(count) * 10)
				engine.Insert(k, k)
			}
			elapsed := time.Since(start)

			cmd.Printf("Inserted %d keys in %v (%.0f ops/sec)\n", count, elapsed, float64(count)/elapsed.Seconds())
			cmd.Printf("Final size: %d\n", engine.Size())

			if verbose {
				it := engine.Iter()
				shown := 0
				for shown < 10 {
					el, ok := it.Next()
					if !ok {
						break
					}
					cmd.Printf("  %d -> %d\n", el.Key, el.Value)
					shown++
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 1000, "Number of keys to insert")
	cmd.Flags().IntVar(&segCap, "seg-cap", 32, "Segment capacity")
	cmd.Flags().Int64Var(&seed, "seed", 1, "Random seed")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "Print the first few entries in sorted order")

	return cmd
}
