package scenarios

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
)

const errorMessageInvalidPattern = "scenarios: invalid pattern"

// ErrInvalidPattern reports a selection pattern path.Match rejects.
var ErrInvalidPattern = errors.New(errorMessageInvalidPattern)

// All returns the whole catalogue in a stable order.
func All() []harness.Scenario {
	return lo.Flatten([][]harness.Scenario{
		authScenarios(),
		customerScenarios(),
		adminScenarios(),
		sessionScenarios(),
		todoScenarios(),
	})
}

// Groups returns the distinct group names in catalogue order.
func Groups() []string {
	return lo.Uniq(lo.Map(All(), func(scenario harness.Scenario, _ int) string { return scenario.Group }))
}

// Select returns the scenarios matching any pattern, in catalogue order. A pattern
// matches a scenario whose name or group equals it, whose name starts with it followed
// by "/", or whose name matches it as a path.Match glob. No patterns selects everything.
func Select(patterns []string) ([]harness.Scenario, error) {
	catalogue := All()
	if len(patterns) == 0 {
		return catalogue, nil
	}
	for _, pattern := range patterns {
		if _, matchErr := path.Match(pattern, ""); matchErr != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPattern, pattern)
		}
	}
	return lo.Filter(catalogue, func(scenario harness.Scenario, _ int) bool {
		return lo.SomeBy(patterns, func(pattern string) bool {
			return matches(scenario, pattern)
		})
	}), nil
}

func matches(scenario harness.Scenario, pattern string) bool {
	if scenario.Name == pattern || scenario.Group == pattern {
		return true
	}
	if strings.HasPrefix(scenario.Name, strings.TrimSuffix(pattern, "/")+"/") {
		return true
	}
	matched, _ := path.Match(pattern, scenario.Name)
	return matched
}
