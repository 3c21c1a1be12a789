// Package structured implements the StructuredDetection (Sigma-like)
// rule processor (spec §4.D.3): YAML rule documents with named
// selections, a boolean condition over selection names, and log-source
// compatibility gating.
package structured

import (
	"fmt"

	yaml "gopkg.in/yaml.v2"
)

// logSource is the logsource: block (spec §4.D.3).
type logSource struct {
	Product    string `yaml:"product"`
	Service    string `yaml:"service"`
	Category   string `yaml:"category"`
	Definition string `yaml:"definition"`
}

// sigmaDoc is the parsed YAML document. Detection is left as a generic
// map since its keys are rule-author-chosen selection names plus the
// fixed "condition" key, not a fixed schema.
type sigmaDoc struct {
	Title          string                 `yaml:"title"`
	ID             string                 `yaml:"id"`
	Description    string                 `yaml:"description"`
	Status         string                 `yaml:"status"`
	Level          string                 `yaml:"level"`
	Author         string                 `yaml:"author"`
	Tags           []string               `yaml:"tags"`
	References     []string               `yaml:"references"`
	LogSource      logSource              `yaml:"logsource"`
	Detection      map[string]interface{} `yaml:"detection"`
	FalsePositives []string               `yaml:"falsepositives"`
}

// compiledRule is what Processor.Compile produces: the parsed document
// plus pre-built selections (field -> matcher list) for every selection
// name, so Evaluate never re-parses YAML.
type compiledRule struct {
	doc        sigmaDoc
	selections map[string]selection
	condition  string
}

func parseRule(content string) (*compiledRule, error) {
	var doc sigmaDoc
	if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
		return nil, fmt.Errorf("structured: invalid YAML: %w", err)
	}
	if doc.Detection == nil {
		return nil, fmt.Errorf("structured: rule %q has no detection block", doc.Title)
	}
	conditionRaw, ok := doc.Detection["condition"]
	if !ok {
		return nil, fmt.Errorf("structured: rule %q detection block has no condition", doc.Title)
	}
	condition, ok := conditionRaw.(string)
	if !ok {
		return nil, fmt.Errorf("structured: rule %q condition is not a string", doc.Title)
	}

	selections := make(map[string]selection)
	for name, criteria := range doc.Detection {
		if name == "condition" {
			continue
		}
		sel, err := compileSelection(criteria)
		if err != nil {
			return nil, fmt.Errorf("structured: rule %q selection %q: %w", doc.Title, name, err)
		}
		selections[name] = sel
	}

	return &compiledRule{doc: doc, selections: selections, condition: condition}, nil
}
