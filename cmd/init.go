package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"
	"github.com/spf13/cobra"

	"github.com/thewriterben/wildcam-mesh/mock"
)

// initCmd writes starter mesh.yaml/node.yaml files for a new deployment.
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write starter configuration files",
	Long: `Writes a commented mesh.yaml describing a sample five-camera
deployment and a node.yaml for the first camera. Edit ids and names, then
flash the pair to each device.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		meshCfg, locals := mock.MockCfg()

		for _, p := range []string{meshConfigPath, nodeConfigPath} {
			if _, err := os.Stat(p); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", p)
			}
		}

		out, err := yaml.Marshal(&meshCfg)
		if err != nil {
			return err
		}
		if err := os.WriteFile(meshConfigPath, out, 0644); err != nil {
			return err
		}

		out, err = yaml.Marshal(&locals[0])
		if err != nil {
			return err
		}
		if err := os.WriteFile(nodeConfigPath, out, 0644); err != nil {
			return err
		}

		fmt.Printf("wrote %s and %s\n", meshConfigPath, nodeConfigPath)
		return nil
	},
	GroupID: "init",
}

func init() {
	rootCmd.AddCommand(initCmd)
}
