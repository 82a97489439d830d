package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

const errorMessageMissingAttribute = "extract: missing attribute"

// ErrMissingAttribute reports an element without the requested attribute.
var ErrMissingAttribute = errors.New(errorMessageMissingAttribute)

// Text returns the element's whitespace-normalized rendered text.
func Text(element browser.Element) string {
	return normalizeWhitespace(element.Text)
}

// Texts returns the rendered text of every element, in document order.
func Texts(elements []browser.Element) []string {
	return lo.Map(elements, func(element browser.Element, _ int) string {
		return Text(element)
	})
}

func Attribute(element browser.Element, name string) (string, error) {
	value, found := element.Attribute(name)
	if !found {
		return "", fmt.Errorf("%w %q on <%s>", ErrMissingAttribute, name, element.TagName)
	}
	return value, nil
}

// Attributes collects name from every element carrying it, skipping the rest.
func Attributes(elements []browser.Element, name string) []string {
	return lo.FilterMap(elements, func(element browser.Element, _ int) (string, bool) {
		return element.Attribute(name)
	})
}

// Distinct drops repeated values, keeping first occurrences in order.
func Distinct(values []string) []string {
	return lo.Uniq(values)
}

func normalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}
