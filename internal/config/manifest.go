package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RulesetEntry names one reusable ruleset: its PMD ruleset file and the
// auxiliary classpath jars it expects, so a team can keep a shared registry
// instead of repeating long paths on every invocation.
type RulesetEntry struct {
	Path    string   `yaml:"path"`
	AuxJars []string `yaml:"aux_jars"`
}

// RulesetManifest maps a short ruleset name (e.g. "java-basic") to its entry.
type RulesetManifest map[string]RulesetEntry

// LoadRulesetManifest reads a YAML file of the form:
//
//	java-basic:
//	  path: /rules/java-basic.xml
//	  aux_jars: [libs/guava.jar]
func LoadRulesetManifest(path string) (RulesetManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ruleset manifest: %w", err)
	}

	var manifest RulesetManifest

	if err := yaml.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse ruleset manifest: %w", err)
	}

	return manifest, nil
}

// Resolve looks up name in the manifest, returning its entry.
func (m RulesetManifest) Resolve(name string) (RulesetEntry, bool) {
	entry, ok := m[name]
	return entry, ok
}
