package cmd

import (
	"fmt"
	"os"

	"github.com/goccy/go-yaml"

	"github.com/thewriterben/wildcam-mesh/state"
)

func readMeshConfig(path string) (*state.MeshCfg, error) {
	var cfg state.MeshCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	state.ExpandMeshConfig(&cfg)
	if err := state.MeshConfigValidator(&cfg); err != nil {
		return nil, fmt.Errorf("invalid mesh config %s: %w", path, err)
	}
	return &cfg, nil
}

func readNodeConfig(path string) (*state.LocalCfg, error) {
	var cfg state.LocalCfg
	file, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, &cfg); err != nil {
		return nil, err
	}
	if err := state.NodeConfigValidator(&cfg); err != nil {
		return nil, fmt.Errorf("invalid node config %s: %w", path, err)
	}
	return &cfg, nil
}
