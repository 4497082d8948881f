package executor

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
)

// manifest mirrors the parts of dbt's target/manifest.json we read.
type manifest struct {
	Nodes map[string]manifestNode `json:"nodes"`
}

type manifestNode struct {
	ResourceType string   `json:"resource_type"`
	Name         string   `json:"name"`
	Tags         []string `json:"tags"`
	Config       struct {
		Tags []string `json:"tags"`
	} `json:"config"`
}

func (n manifestNode) hasTag(tag string) bool {
	for _, t := range n.Tags {
		if t == tag {
			return true
		}
	}
	for _, t := range n.Config.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// TaggedModels reads the compilation manifest and returns the names of
// models carrying the given tag, sorted for stable output.
func TaggedModels(projectDir, tag string) ([]string, error) {
	path := filepath.Join(projectDir, "target", "manifest.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ManifestError{Path: path, Cause: err}
	}

	var m manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &ManifestError{Path: path, Cause: err}
	}

	var models []string
	for _, node := range m.Nodes {
		if node.ResourceType != "model" {
			continue
		}
		if node.hasTag(tag) {
			models = append(models, node.Name)
		}
	}
	sort.Strings(models)
	return models, nil
}
