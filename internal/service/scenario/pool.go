// Package scenario supplies the practice situations a user responds to:
// bundled static pools per mode, and best-effort generated ones.
package scenario

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"eq-coach-service/internal/models"
)

//go:embed scenarios.yaml
var bundled []byte

// Pool holds the static scenarios for each mode.
type Pool struct {
	Work         []models.Scenario `yaml:"work"`
	Relationship []models.Scenario `yaml:"relationship"`
}

// For returns the scenarios for mode, falling back to the work pool.
func (p *Pool) For(mode models.Mode) []models.Scenario {
	if mode == models.ModeRelationship && len(p.Relationship) > 0 {
		return p.Relationship
	}
	return p.Work
}

// DefaultPool returns the bundled pool.
func DefaultPool() *Pool {
	p, err := decodePool(bytes.NewReader(bundled))
	if err != nil {
		panic(fmt.Sprintf("scenario: bundled pool is invalid: %v", err))
	}
	return p
}

// LoadPool reads a pool from a YAML file. Unknown keys are rejected.
func LoadPool(path string) (*Pool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scenario: open %s: %w", path, err)
	}
	defer f.Close()

	p, err := decodePool(f)
	if err != nil {
		return nil, fmt.Errorf("scenario: %s: %w", path, err)
	}
	return p, nil
}

func decodePool(r io.Reader) (*Pool, error) {
	var p Pool
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (p *Pool) validate() error {
	if len(p.Work) == 0 {
		return fmt.Errorf("work pool is empty")
	}
	for mode, list := range map[string][]models.Scenario{"work": p.Work, "relationship": p.Relationship} {
		for i, s := range list {
			if s.Label == "" || s.Prompt == "" {
				return fmt.Errorf("%s[%d]: label and prompt are required", mode, i)
			}
		}
	}
	return nil
}
