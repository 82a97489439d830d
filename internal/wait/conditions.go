package wait

import (
	"context"
	"fmt"
	"strings"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

// Result is what a satisfied condition observed.
type Result struct {
	Elements []browser.Element
	URL      string
}

// First returns the first matched element in document order.
func (result Result) First() (browser.Element, bool) {
	if len(result.Elements) == 0 {
		return browser.Element{}, false
	}
	return result.Elements[0], true
}

// Condition is a predicate over observable page state. Evaluate must not mutate the page.
type Condition interface {
	Describe() string
	Evaluate(ctx context.Context, observer Observer) (Result, bool, error)
}

type conditionFunc struct {
	description string
	evaluate    func(ctx context.Context, observer Observer) (Result, bool, error)
}

func (condition conditionFunc) Describe() string {
	return condition.description
}

func (condition conditionFunc) Evaluate(ctx context.Context, observer Observer) (Result, bool, error) {
	return condition.evaluate(ctx, observer)
}

// Func adapts an arbitrary probe, such as a store query, into a Condition.
func Func(description string, probe func(ctx context.Context) (bool, error)) Condition {
	return conditionFunc{
		description: description,
		evaluate: func(ctx context.Context, _ Observer) (Result, bool, error) {
			satisfied, probeErr := probe(ctx)
			return Result{}, satisfied, probeErr
		},
	}
}

func elementCondition(description string, locator browser.Locator, accept func(browser.Element) bool) Condition {
	return conditionFunc{
		description: fmt.Sprintf("%s %s", description, locator),
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			elements, probeErr := observer.Probe(ctx, locator)
			if probeErr != nil {
				return Result{}, false, probeErr
			}
			for _, element := range elements {
				if accept(element) {
					return Result{Elements: []browser.Element{element}}, true, nil
				}
			}
			return Result{}, false, nil
		},
	}
}

// ElementPresent holds once locator matches; the result is the first match in document order.
func ElementPresent(locator browser.Locator) Condition {
	return elementCondition("element present", locator, func(browser.Element) bool { return true })
}

// ElementVisible holds once some match is rendered visibly; the first visible match is returned.
func ElementVisible(locator browser.Locator) Condition {
	return elementCondition("element visible", locator, func(element browser.Element) bool { return element.Visible })
}

// ElementClickable holds once some match is visible and enabled.
func ElementClickable(locator browser.Locator) Condition {
	return elementCondition("element clickable", locator, func(element browser.Element) bool {
		return element.Visible && element.Enabled
	})
}

// TextPresent holds once a match's text contains fragment.
func TextPresent(locator browser.Locator, fragment string) Condition {
	return elementCondition(fmt.Sprintf("text %q in", fragment), locator, func(element browser.Element) bool {
		return strings.Contains(element.Text, fragment)
	})
}

// ValueEquals holds once a match's form value equals expected.
func ValueEquals(locator browser.Locator, expected string) Condition {
	return elementCondition(fmt.Sprintf("value %q of", expected), locator, func(element browser.Element) bool {
		return element.Value == expected
	})
}

// AllElementsPresent holds once locator matches at least one element and returns every
// match in document order. Zero matches never satisfy it.
func AllElementsPresent(locator browser.Locator) Condition {
	return allElements(locator, false)
}

// AllElementsPresentOrNone returns every match, accepting an empty sequence.
func AllElementsPresentOrNone(locator browser.Locator) Condition {
	return allElements(locator, true)
}

func allElements(locator browser.Locator, allowEmpty bool) Condition {
	description := fmt.Sprintf("all elements present %s", locator)
	if allowEmpty {
		description = fmt.Sprintf("all elements (possibly none) %s", locator)
	}
	return conditionFunc{
		description: description,
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			elements, probeErr := observer.Probe(ctx, locator)
			if probeErr != nil {
				return Result{}, false, probeErr
			}
			if len(elements) == 0 && !allowEmpty {
				return Result{}, false, nil
			}
			if elements == nil {
				elements = []browser.Element{}
			}
			return Result{Elements: elements}, true, nil
		},
	}
}

// ElementAbsent holds once locator matches nothing.
func ElementAbsent(locator browser.Locator) Condition {
	return conditionFunc{
		description: fmt.Sprintf("element absent %s", locator),
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			elements, probeErr := observer.Probe(ctx, locator)
			if probeErr != nil {
				return Result{}, false, probeErr
			}
			return Result{}, len(elements) == 0, nil
		},
	}
}

// PageContains holds once the document source contains fragment.
func PageContains(fragment string) Condition {
	return conditionFunc{
		description: fmt.Sprintf("page contains %q", fragment),
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			source, sourceErr := observer.Source(ctx)
			if sourceErr != nil {
				return Result{}, false, sourceErr
			}
			return Result{}, strings.Contains(source, fragment), nil
		},
	}
}

// URLContains holds once the current URL contains fragment.
func URLContains(fragment string) Condition {
	return urlCondition(fmt.Sprintf("url contains %q", fragment), func(currentURL string) bool {
		return strings.Contains(currentURL, fragment)
	})
}

// URLChanged holds once the current URL differs from baseline.
func URLChanged(baseline string) Condition {
	return urlCondition(fmt.Sprintf("url changed from %q", baseline), func(currentURL string) bool {
		return currentURL != baseline
	})
}

func urlCondition(description string, accept func(string) bool) Condition {
	return conditionFunc{
		description: description,
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			currentURL, urlErr := observer.CurrentURL(ctx)
			if urlErr != nil {
				return Result{}, false, urlErr
			}
			if !accept(currentURL) {
				return Result{}, false, nil
			}
			return Result{URL: currentURL}, true, nil
		},
	}
}

// AnyOf holds once any of conditions holds, reporting the first satisfied one in argument order.
func AnyOf(conditions ...Condition) Condition {
	descriptions := make([]string, 0, len(conditions))
	for _, condition := range conditions {
		descriptions = append(descriptions, condition.Describe())
	}
	return conditionFunc{
		description: "any of (" + strings.Join(descriptions, "; ") + ")",
		evaluate: func(ctx context.Context, observer Observer) (Result, bool, error) {
			var lastErr error
			for _, condition := range conditions {
				result, satisfied, evaluateErr := condition.Evaluate(ctx, observer)
				if evaluateErr != nil {
					lastErr = evaluateErr
					continue
				}
				if satisfied {
					return result, true, nil
				}
			}
			return Result{}, false, lastErr
		},
	}
}
