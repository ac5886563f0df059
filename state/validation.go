package state

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"regexp"
)

var namePattern, _ = regexp.Compile("^[0-9a-z._-]*$")

func PathValidator(s string) error {
	_, err := os.Stat(path.Dir(s))
	if err != nil {
		return err
	}
	_, err = filepath.Abs(s)
	return err
}

func NameValidator(s string) error {
	if !namePattern.MatchString(s) {
		return fmt.Errorf("%s is not a valid name, must match pattern %s", s, namePattern.String())
	}
	if len(s) > 100 {
		return fmt.Errorf("len(\"%s\") = %d > 100 is too long", s, len(s))
	}
	return nil
}

func NodeConfigValidator(node *LocalCfg) error {
	if !node.Id.Valid() {
		return fmt.Errorf("node id must be non-zero")
	}
	if node.LogPath != "" {
		if err := PathValidator(node.LogPath); err != nil {
			return err
		}
	}
	return nil
}

func MeshConfigValidator(cfg *MeshCfg) error {
	if len(cfg.Nodes) == 0 {
		return fmt.Errorf("mesh config lists no nodes")
	}
	seen := make(map[NodeId]bool)
	for _, node := range cfg.Nodes {
		if !node.Id.Valid() {
			return fmt.Errorf("node %q has an invalid id", node.Name)
		}
		if seen[node.Id] {
			return fmt.Errorf("duplicate node id: %s", node.Id)
		}
		seen[node.Id] = true
		if err := NameValidator(node.Name); err != nil {
			return err
		}
	}
	if cfg.CongestionThreshold < 0 || cfg.CongestionThreshold > 1 {
		return fmt.Errorf("congestion_threshold must be within [0,1], got %f", cfg.CongestionThreshold)
	}
	if cfg.RebalanceTolerance < 0 {
		return fmt.Errorf("rebalance_tolerance must be non-negative")
	}
	if cfg.ImageFailureBound < 0 || cfg.ImageFailureBound > 1 {
		return fmt.Errorf("image_failure_bound must be within [0,1]")
	}
	if cfg.CoordinatorOverride != 0 && cfg.GetNode(cfg.CoordinatorOverride) == nil {
		return fmt.Errorf("coordinator_override %s is not a configured node", cfg.CoordinatorOverride)
	}
	return nil
}
