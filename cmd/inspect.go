package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// inspectCmd validates the deployment configs and prints what they resolve
// to after defaults are applied.
var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate and print the deployment configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		meshCfg, err := readMeshConfig(meshConfigPath)
		if err != nil {
			return err
		}
		fmt.Printf("mesh: %d nodes, max_hops=%d, congestion_threshold=%.2f\n",
			len(meshCfg.Nodes), meshCfg.MaxHops, meshCfg.CongestionThreshold)
		for _, n := range meshCfg.Nodes {
			fmt.Printf("  node %s (%s)\n", n.Id, n.Name)
		}
		if len(meshCfg.SimLinks) > 0 {
			fmt.Printf("sim topology: %d links\n", len(meshCfg.SimLinks))
			for _, l := range meshCfg.SimLinks {
				fmt.Printf("  %s <-> %s latency=%s loss=%.2f rssi=%d\n", l.A, l.B, l.Latency, l.Loss, l.RSSI)
			}
		}

		nodeCfg, err := readNodeConfig(nodeConfigPath)
		if err != nil {
			return err
		}
		if meshCfg.GetNode(nodeCfg.Id) == nil {
			return fmt.Errorf("node %s is not part of the mesh config", nodeCfg.Id)
		}
		fmt.Printf("local node: %s\n", nodeCfg.Id)
		return nil
	},
	GroupID: "mesh",
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}
