package engine

import (
	"fmt"

	"sentinel/internal/config"
	"sentinel/internal/rules"
)

// BuildStore assembles the rule catalog selected by cfg: the built-in
// rules (unless disabled) followed by the rules in cfg.Paths. Malformed
// extra rules are skipped and returned in rejected; a duplicate ID fails.
func BuildStore(cfg config.RulesConfig) (store *rules.Store, rejected []error, err error) {
	base := rules.NewStore()
	if !cfg.DisableBuiltin {
		base, err = rules.Builtin()
		if err != nil {
			return nil, nil, err
		}
	}
	if len(cfg.Paths) == 0 {
		return base, nil, nil
	}

	extra, err := rules.LoadFiles(cfg.Paths)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load rule files: %w", err)
	}
	return rules.Merge(base, extra)
}
