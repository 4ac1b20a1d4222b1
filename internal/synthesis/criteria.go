package synthesis

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"uxforge/internal/domain"
)

// DefaultCriteria is used when no criteria file is configured.
func DefaultCriteria() []domain.EvaluationCriterion {
	return []domain.EvaluationCriterion{{Key: "clarity", Description: "Visual clarity", Weight: 1.0}}
}

type criteriaFile struct {
	Criteria []domain.EvaluationCriterion `yaml:"criteria"`
}

// LoadCriteria reads evaluation criteria from a YAML file. The file may hold a
// plain list or a mapping with a "criteria" key. An empty path returns the
// defaults.
func LoadCriteria(path string) ([]domain.EvaluationCriterion, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return DefaultCriteria(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("synthesis: read criteria: %w", err)
	}
	return ParseCriteria(raw)
}

// ParseCriteria decodes YAML criteria and validates every entry.
func ParseCriteria(raw []byte) ([]domain.EvaluationCriterion, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return DefaultCriteria(), nil
	}
	var list []domain.EvaluationCriterion
	if trimmed[0] == '-' || trimmed[0] == '[' {
		if err := yaml.Unmarshal(trimmed, &list); err != nil {
			return nil, fmt.Errorf("synthesis: decode criteria: %w", err)
		}
	} else {
		var file criteriaFile
		if err := yaml.Unmarshal(trimmed, &file); err != nil {
			return nil, fmt.Errorf("synthesis: decode criteria: %w", err)
		}
		list = file.Criteria
	}
	if len(list) == 0 {
		return nil, errors.New("synthesis: criteria file has no entries")
	}
	for i, c := range list {
		if strings.TrimSpace(c.Key) == "" {
			return nil, fmt.Errorf("synthesis: criterion %d has no key", i)
		}
		if c.Weight < 0 {
			return nil, fmt.Errorf("synthesis: criterion %q has negative weight", c.Key)
		}
		if c.Weight == 0 {
			list[i].Weight = 1.0
		}
	}
	return list, nil
}
