package rules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalYAML applies DefaultConfidence when a document omits confidence.
func (r *Rule) UnmarshalYAML(value *yaml.Node) error {
	type plain Rule
	p := plain{Confidence: DefaultConfidence}
	if err := value.Decode(&p); err != nil {
		return err
	}
	*r = Rule(p)
	return nil
}

// ruleFile is the wrapped document form: a top-level "rules" key.
type ruleFile struct {
	Rules []*Rule `yaml:"rules"`
}

// ParseRule parses a single rule from YAML bytes. Patterns are not compiled
// until the rule is added to a Store.
func ParseRule(data []byte) (*Rule, error) {
	var rule Rule
	if err := yaml.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("failed to parse rule: %w", err)
	}
	if rule.ID == "" {
		return nil, fmt.Errorf("failed to parse rule: missing id")
	}
	return &rule, nil
}

// ParseRules parses rules from YAML bytes. A document may be a list of
// rules, a mapping with a "rules" key, or a single rule.
func ParseRules(data []byte) ([]*Rule, error) {
	var list []*Rule
	listErr := yaml.Unmarshal(data, &list)
	if listErr == nil {
		return list, nil
	}

	var wrapped ruleFile
	if err := yaml.Unmarshal(data, &wrapped); err == nil && len(wrapped.Rules) > 0 {
		return wrapped.Rules, nil
	}

	rule, singleErr := ParseRule(data)
	if singleErr != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", listErr)
	}
	return []*Rule{rule}, nil
}

// LoadFiles reads and parses every YAML file under paths. Directories are
// walked recursively. Rules are returned in path order, then file order.
func LoadFiles(paths []string) ([]*Rule, error) {
	var all []*Rule
	for _, path := range paths {
		files, err := CollectFiles(path)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			data, err := os.ReadFile(f)
			if err != nil {
				return nil, fmt.Errorf("failed to read rule file %s: %w", f, err)
			}
			rs, err := ParseRules(data)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", f, err)
			}
			all = append(all, rs...)
		}
	}
	return all, nil
}

// CollectFiles returns path itself when it is a file, or every .yaml/.yml
// file beneath it when it is a directory.
func CollectFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(p))
		if ext == ".yaml" || ext == ".yml" {
			files = append(files, p)
		}
		return nil
	})
	return files, err
}
