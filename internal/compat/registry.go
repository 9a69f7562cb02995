package compat

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"cropopt/internal/catalog"
)

var ErrPolicyNotFound = errors.New("compatibility policy not found")

type factory func(categories *catalog.Categories) Policy

var policies = map[string]factory{
	"rule":   func(c *catalog.Categories) Policy { return RuleScorer{Categories: c} },
	"list":   func(*catalog.Categories) Policy { return ListScorer{} },
	"bucket": func(*catalog.Categories) Policy { return BucketScorer{} },
}

// New resolves a policy by configuration name.
func New(name string, categories *catalog.Categories) (Policy, error) {
	build, ok := policies[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %v)", ErrPolicyNotFound, name, Names())
	}
	return build(categories), nil
}

func Names() []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
