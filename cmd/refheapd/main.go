// Command refheapd serves a fixed-pool, compacting, reference-counted
// heap over RPC: a cobra root command with flags for the pool size
// and listen address, wired to a long-running rpc.Server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shenjiangwei/refheap"
	"github.com/shenjiangwei/refheap/internal/rlog"
	"github.com/shenjiangwei/refheap/rpc"
)

func newRootCmd() *cobra.Command {
	var (
		addr     string
		poolSize uint32
	)

	cmd := &cobra.Command{
		Use:   "refheapd",
		Short: "Serve a fixed-pool, reference-counted heap over RPC",
		RunE: func(cmd *cobra.Command, args []string) error {
			m := refheap.New(poolSize)
			rlog.Info("refheapd", "starting", map[string]any{"addr": addr, "poolSize": poolSize})
			return rpc.Serve(addr, m)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:4242", "address to listen on")
	cmd.Flags().Uint32Var(&poolSize, "pool-size", 1<<20, "size in bytes of the managed pool")
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
