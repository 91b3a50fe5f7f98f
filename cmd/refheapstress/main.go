// Command refheapstress is a seeded random alloc/free churn harness
// for refheap.Manager: it grows and shrinks a working set of handles
// under a fixed pool budget, compacting and retrying on
// ErrOutOfMemory, and treats any integrity violation as a fatal
// failure rather than a warning.
package main

import (
	"errors"
	"fmt"
	"math/rand"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/refheap"
	"github.com/shenjiangwei/refheap/internal/pool"
	"github.com/shenjiangwei/refheap/internal/rlog"
)

func newRootCmd() *cobra.Command {
	var (
		poolSize   uint32
		ops        int
		maxAlloc   uint32
		seed       int64
		checkEvery int
	)

	cmd := &cobra.Command{
		Use:   "refheapstress",
		Short: "Run a seeded random allocation workload against a refheap.Manager",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(poolSize, ops, maxAlloc, seed, checkEvery)
		},
	}

	cmd.Flags().Uint32Var(&poolSize, "pool-size", 1<<16, "size in bytes of the managed pool")
	cmd.Flags().IntVar(&ops, "ops", 100000, "number of alloc/free operations to run")
	cmd.Flags().Uint32Var(&maxAlloc, "max-alloc", 256, "bound on the random part of each AllocRef request; 4 is added to every draw, so requests span 4 to max-alloc+3 bytes")
	cmd.Flags().Int64Var(&seed, "seed", 1, "PRNG seed, for reproducing a failing run")
	cmd.Flags().IntVar(&checkEvery, "check-every", 500, "run the integrity checker every N operations")
	return cmd
}

// run mirrors CheckGC: repeatedly either allocates a random size or
// frees a random live handle, weighted so the working set tends to
// grow, retrying once via Compact when the pool reports
// pool.ErrOutOfMemory before giving up.
func run(poolSize uint32, ops int, maxAlloc uint32, seed int64, checkEvery int) error {
	m := refheap.New(poolSize)
	rng := rand.New(rand.NewSource(seed))

	var live []refheap.Handle
	var allocs, frees, compactions, oomRetries int

	for i := 0; i < ops; i++ {
		if checkEvery > 0 && i%checkEvery == 0 {
			if err := m.Check(); err != nil {
				return fmt.Errorf("op %d: integrity check failed: %w", i, err)
			}
		}

		allocWeighted := len(live) == 0 || rng.Intn(100) < 70
		if allocWeighted {
			size := uint32(rng.Intn(int(maxAlloc))) + 4
			h, err := m.AllocRef(size)
			if errors.Is(err, pool.ErrOutOfMemory) {
				if cerr := m.Compact(); cerr != nil {
					return fmt.Errorf("op %d: compact: %w", i, cerr)
				}
				compactions++
				oomRetries++
				h, err = m.AllocRef(size)
			}
			if err != nil {
				return fmt.Errorf("op %d: alloc %d bytes: %w", i, size, err)
			}
			live = append(live, h)
			allocs++
			continue
		}

		idx := rng.Intn(len(live))
		h := live[idx]
		live[idx] = live[len(live)-1]
		live = live[:len(live)-1]
		if err := m.FreeRef(h); err != nil {
			return fmt.Errorf("op %d: free handle %d: %w", i, h, err)
		}
		frees++
	}

	for _, h := range live {
		if err := m.FreeRef(h); err != nil {
			return fmt.Errorf("final drain: free handle %d: %w", h, err)
		}
	}
	if err := m.Check(); err != nil {
		return fmt.Errorf("final integrity check failed: %w", err)
	}

	stats := m.Stats()
	rlog.Info("refheapstress", "workload complete", map[string]any{
		"ops": ops, "allocs": allocs, "frees": frees,
		"compactions": compactions, "oomRetries": oomRetries,
		"finalUsedBlocks": stats.UsedBlocks, "finalFreeBlocks": stats.FreeBlocks,
	})
	return nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
