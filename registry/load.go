package registry

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/hupe1980/agentchat/core"
	"gopkg.in/yaml.v3"
)

type file struct {
	Agents []core.AgentDescriptor `yaml:"agents"`
}

// LoadFile reads a YAML agent file and builds a registry from it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read agents file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

// Load decodes a YAML agent document from rd.
func Load(rd io.Reader) (*Registry, error) {
	dec := yaml.NewDecoder(rd)
	dec.KnownFields(true)

	var f file
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, ErrNoAgents
		}
		return nil, fmt.Errorf("failed to parse agents: %w", err)
	}
	return New(f.Agents...)
}

// Parse decodes a YAML agent document.
func Parse(data []byte) (*Registry, error) {
	return Load(bytes.NewReader(data))
}
