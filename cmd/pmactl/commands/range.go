package commands

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/intellect4all/pma-engine/pma"
)

func rangeCmd() *cobra.Command {
	var (
		count  int
		min    int64
		max    int64
		segCap int
	)

	cmd := &cobra.Command{
		Use:   "range",
		Short: "Populate a PMA with sequential keys and run a range scan",
		RunE: func(cmd *cobra.Command, args []string) error {
			if min > max {
				return errors.Errorf("--min (%d) must be <= --max (%d)", min, max)
			}

			cfg := pma.DefaultConfig()
			cfg.SegmentCapacity = segCap
			engine, err := pma.New(cfg)
			if err != nil {
				return errors.Wrap(err, "failed to create PMA")
			}

			for i := int64(0); i < int64(count); i++ {
				engine.Insert(i, i*i)
			}

			elems := engine.RangeScan(min, max)
			sum := engine.Sum(min, max)

			cmd.Printf("RangeScan(%d, %d) -> %d entries\n", min, max, len(elems))
			cmd.Printf("Sum(%d, %d) -> first=%d last=%d count=%d sumKeys=%d sumValues=%d\n",
				min, max, sum.First, sum.Last, sum.Count, sum.SumKeys, sum.SumValues)
			return nil
		},
	}

	cmd.Flags().IntVar(&count, "count", 10000, "Number of sequential keys to preload (0..count-1)")
	cmd.Flags().Int64Var(&min, "min", 0, "Range scan lower bound")
	cmd.Flags().Int64Var(&max, "max", 100, "Range scan upper bound")
	cmd.Flags().IntVar(&segCap, "seg-cap", 32, "Segment capacity")

	return cmd
}
