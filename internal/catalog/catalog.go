package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"riskwatch/internal/model"
)

// Load reads a catalogue snapshot from a YAML or JSON file and validates it.
func Load(path string) (*model.Catalog, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}

func Parse(content []byte) (*model.Catalog, error) {
	trimmed := strings.TrimSpace(string(content))
	if len(trimmed) == 0 {
		return nil, errors.New("catalog document is empty")
	}
	var cat model.Catalog
	var decodeErr error
	if trimmed[0] == '{' || trimmed[0] == '[' {
		decodeErr = json.Unmarshal([]byte(trimmed), &cat)
	} else {
		decodeErr = yaml.Unmarshal([]byte(trimmed), &cat)
	}
	if decodeErr != nil {
		return nil, decodeErr
	}
	if err := Validate(&cat); err != nil {
		return nil, err
	}
	return &cat, nil
}

// Validate enforces the structural invariants the scoring core relies on:
// category and indicator ids present, indicator ids unique across the whole
// tree, priority and status values recognized.
func Validate(cat *model.Catalog) error {
	if cat == nil {
		return errors.New("nil catalog")
	}
	seenCat := make(map[string]struct{}, len(cat.Categories))
	seenInd := make(map[string]struct{})
	for _, c := range cat.Categories {
		if strings.TrimSpace(c.ID) == "" {
			return fmt.Errorf("category %q has empty id", c.Name)
		}
		if _, dup := seenCat[c.ID]; dup {
			return fmt.Errorf("duplicate category id %q", c.ID)
		}
		seenCat[c.ID] = struct{}{}
		for _, sc := range c.Subcategories {
			for _, ind := range sc.Indicators {
				if strings.TrimSpace(ind.ID) == "" {
					return fmt.Errorf("indicator %q in category %q has empty id", ind.Name, c.ID)
				}
				if _, dup := seenInd[ind.ID]; dup {
					return fmt.Errorf("duplicate indicator id %q", ind.ID)
				}
				seenInd[ind.ID] = struct{}{}
				switch ind.Priority {
				case model.PriorityP0, model.PriorityP1, model.PriorityP2, "":
				default:
					return fmt.Errorf("indicator %q has unknown priority %q", ind.ID, ind.Priority)
				}
				switch ind.Status {
				case model.StatusActive, model.StatusInactive, "":
				default:
					return fmt.Errorf("indicator %q has unknown status %q", ind.ID, ind.Status)
				}
			}
		}
	}
	return nil
}

// IndicatorCount reports the number of indicators across the whole tree.
func IndicatorCount(cat *model.Catalog) int {
	if cat == nil {
		return 0
	}
	n := 0
	for _, c := range cat.Categories {
		for _, sc := range c.Subcategories {
			n += len(sc.Indicators)
		}
	}
	return n
}
