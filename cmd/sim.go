package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/thewriterben/wildcam-mesh/core"
	"github.com/thewriterben/wildcam-mesh/link"
	"github.com/thewriterben/wildcam-mesh/state"
)

var simDumpInterval time.Duration

// simCmd runs every configured node over the in-memory radio. It exists to
// shake out a deployment's topology and tunables before hardware ships.
var simCmd = &cobra.Command{
	Use:   "sim",
	Short: "Simulate the whole mesh on an in-memory radio",
	Long: `Runs one routing core per configured node, wired together through
the sim_links topology in the mesh config. Route tables are dumped
periodically. Send SIGINT to stop.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		meshCfg, err := readMeshConfig(meshConfigPath)
		if err != nil {
			return err
		}
		if len(meshCfg.SimLinks) == 0 {
			return fmt.Errorf("mesh config has no sim_links topology")
		}

		level := slog.LevelInfo
		if ok, _ := cmd.Flags().GetBool("verbose"); ok {
			level = slog.LevelDebug
		}

		net := link.NewMemNetwork()
		defer net.Shutdown()
		for _, l := range meshCfg.SimLinks {
			net.Connect(l.A, l.B, link.MemEdge{
				Latency:    l.Latency,
				Jitter:     l.Jitter,
				PacketLoss: l.Loss,
				RSSI:       l.RSSI,
			})
		}

		states := make([]*state.State, len(meshCfg.Nodes))
		errs := make(chan error, len(meshCfg.Nodes))
		for i, n := range meshCfg.Nodes {
			opts := core.Options{
				Transport: net.Attach(n.Id),
				LogLevel:  level,
				InitState: &states[i],
			}
			ncfg := state.LocalCfg{Id: n.Id}
			go func() {
				errs <- core.Start(*meshCfg, ncfg, opts)
			}()
		}

		ticker := time.NewTicker(simDumpInterval)
		defer ticker.Stop()
		for {
			select {
			case err := <-errs:
				return err
			case <-ticker.C:
				dumpTables(states)
			}
		}
	},
	GroupID: "mesh",
}

func dumpTables(states []*state.State) {
	for _, s := range states {
		if s == nil {
			continue
		}
		res, err := s.DispatchWait(func(s *state.State) (any, error) {
			return core.Get[*core.RouteTable](s).Routes(), nil
		})
		if err != nil {
			continue
		}
		routes := res.([]state.RouteEntry)
		fmt.Printf("--- %s: %d routes\n", s.Id, len(routes))
		for _, e := range routes {
			fmt.Printf("    %s via %s hops=%d metric=%.2f rel=%.2f util=%.2f\n",
				e.Destination, e.NextHop, e.HopCount, e.Metric, e.Reliability, e.Utilization)
		}
	}
}

func init() {
	rootCmd.AddCommand(simCmd)
	simCmd.Flags().BoolP("verbose", "v", false, "Verbose output")
	simCmd.Flags().DurationVarP(&simDumpInterval, "dump-interval", "d", 10*time.Second, "How often to dump route tables")
	simCmd.Flags().BoolVarP(&state.DBG_log_engine, "lengine", "e", false, "Log path searches")
	simCmd.Flags().BoolVarP(&state.DBG_log_table, "ltable", "t", false, "Log table mutations")
	simCmd.Flags().BoolVarP(&state.DBG_log_probes, "lprobe", "p", false, "Log link probes")
	simCmd.Flags().BoolVarP(&state.DBG_log_changes, "lrchange", "g", false, "Log route changes")
}
