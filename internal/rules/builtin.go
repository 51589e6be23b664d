package rules

import (
	"errors"
	"fmt"
)

// BuiltinRules returns fresh copies of the built-in catalog in registration
// order: SWC registry, DeFi, MEV, proxy, bridge.
func BuiltinRules() []*Rule {
	var all []*Rule
	all = append(all, swcRules()...)
	all = append(all, defiRules()...)
	all = append(all, mevRules()...)
	all = append(all, proxyRules()...)
	all = append(all, bridgeRules()...)
	return all
}

// Builtin builds a Store from the built-in catalog. Any rejected rule is a
// catalog bug and fails the build.
func Builtin() (*Store, error) {
	store, rejected, err := Load(BuiltinRules())
	if err != nil {
		return nil, err
	}
	if len(rejected) > 0 {
		return nil, fmt.Errorf("built-in catalog: %w", errors.Join(rejected...))
	}
	return store, nil
}
