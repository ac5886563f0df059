package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	meshConfigPath = "mesh.yaml"
	nodeConfigPath = "node.yaml"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wildcam-mesh",
	Short: "WildCAM mesh routing CLI",
	Long: `WildCAM mesh routing and coordination tooling.
The routing core relays wildlife detections and images across a multi-hop
camera radio mesh. This CLI validates deployments and simulates them on an
in-memory radio before hardware goes into the field.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddGroup(&cobra.Group{
		ID:    "init",
		Title: "Initialize a deployment",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "mesh",
		Title: "Mesh Commands",
	})
	rootCmd.PersistentFlags().StringVarP(&nodeConfigPath, "node-config", "n", nodeConfigPath, "node-specific config")
	rootCmd.PersistentFlags().StringVarP(&meshConfigPath, "mesh-config", "c", meshConfigPath, "network-global config")
}
