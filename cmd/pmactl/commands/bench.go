package commands

import (
	"math/rand"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/intellect4all/pma-engine/common/benchmark"
	"github.com/intellect4all/pma-engine/pma"
)

func benchCmd() *cobra.Command {
	var (
		preload int
		ops     int
		segCap  int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run a quick insert/find latency benchmark against a PMA",
		RunE: func(cmd *cobra.Command, args []string) error {
			if preload <= 0 || ops <= 0 {
				return errors.New("--preload and --ops must both be > 0")
			}

			cfg := pma.DefaultConfig()
			cfg.SegmentCapacity = segCap
			engine, err := pma.New(cfg)
			if err != nil {
				return errors.Wrap(err, "failed to create PMA")
			}

			for i := int64(0); i < int64(preload); i++ {
				engine.Insert(i, i)
			}

			findLatency := benchmark.NewLatencyHistogram()
			insertLatency := benchmark.NewLatencyHistogram()
			rng := rand.New(rand.NewSource(1))

			for i := 0; i < ops; i++ {
				if rng.Intn(2) == 0 {
					k := int64(rng.Intn(preload))
					start := time.Now()
					engine.Find(k)
					findLatency.Record(time.Since(start))
				} else {
					k := int64(rng.Intn(preload * 2))
					start := time.Now()
					engine.Insert(k, k)
					insertLatency.Record(time.Since(start))
				}
			}

			printStats(cmd, "Find", findLatency.Stats())
			printStats(cmd, "Insert", insertLatency.Stats())
			return nil
		},
	}

	cmd.Flags().IntVar(&preload, "preload", 100000, "Keys to preload before benchmarking")
	cmd.Flags().IntVar(&ops, "ops", 50000, "Number of mixed find/insert operations to run")
	cmd.Flags().IntVar(&segCap, "seg-cap", 32, "Segment capacity")

	return cmd
}

func printStats(cmd *cobra.Command, label string, s benchmark.LatencyStats) {
	cmd.Printf("%s latency: min=%v mean=%v p50=%v p95=%v p99=%v max=%v\n",
		label, s.Min, s.Mean, s.P50, s.P95, s.P99, s.Max)
}
