package commands

import (
	"context"
	"math/rand"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/intellect4all/pma-engine/pma"
)

var (
	pmaOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pma_operations_total",
		Help: "Total number of operations performed against the served PMA",
	}, []string{"operation"})

	pmaOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "pma_operation_duration_seconds",
		Help:    "Operation latency in seconds",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 12),
	}, []string{"operation"})

	pmaSize = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pma_size",
		Help: "Current number of entries in the served PMA",
	})

	pmaSegments = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pma_segments",
		Help: "Current number of segments in the served PMA",
	})
)

func serveCmd() *cobra.Command {
	var (
		addr      string
		preload   int
		workload  int
		segCap    int
		tickEvery time.Duration
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a background workload against a PMA and expose Prometheus metrics",
		Long: `Builds a PMA, preloads it, then drives a simulated insert/remove
workload on a ticker while serving Prometheus metrics on --addr at
/metrics. Intended for watching rebalancing behavior live in a
dashboard rather than for production deployment.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := pma.DefaultConfig()
			cfg.SegmentCapacity = segCap
			engine, err := pma.New(cfg)
			if err != nil {
				return err
			}

			for i := int64(0); i < int64(preload); i++ {
				engine.Insert(i, i)
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			go runWorkload(ctx, engine, preload, workload, tickEvery)

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.Handler())

			cmd.Printf("Serving metrics on %s/metrics (preload=%d)\n", addr, preload)
			server := &http.Server{Addr: addr, Handler: mux}
			return server.ListenAndServe()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9090", "HTTP listen address")
	cmd.Flags().IntVar(&preload, "preload", 10000, "Keys to preload before serving")
	cmd.Flags().IntVar(&workload, "workload-ops-per-tick", 50, "Operations to perform per tick")
	cmd.Flags().IntVar(&segCap, "seg-cap", 32, "Segment capacity")
	cmd.Flags().DurationVar(&tickEvery, "tick", 200*time.Millisecond, "Workload tick interval")

	return cmd
}

func runWorkload(ctx context.Context, engine *pma.Engine, preload, opsPerTick int, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for i := 0; i < opsPerTick; i++ {
				k := int64(rng.Intn(preload * 2))
				if rng.Intn(3) == 0 {
					start := time.Now()
					engine.Remove(k)
					pmaOperations.WithLabelValues("remove").Inc()
					pmaOperationLatency.WithLabelValues("remove").Observe(time.Since(start).Seconds())
				} else {
					start := time.Now()
					engine.Insert(k, k)
					pmaOperations.WithLabelValues("insert").Inc()
					pmaOperationLatency.WithLabelValues("insert").Observe(time.Since(start).Seconds())
				}
			}
			pmaSize.Set(float64(engine.Size()))
			pmaSegments.Set(float64(engine.Segments()))
		}
	}
}
