package browser

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Strategy names how a Locator value is interpreted.
type Strategy string

const (
	StrategyID              Strategy = "id"
	StrategyName            Strategy = "name"
	StrategyCSS             Strategy = "css"
	StrategyXPath           Strategy = "xpath"
	StrategyLinkText        Strategy = "link text"
	StrategyPartialLinkText Strategy = "partial link text"
	StrategyClassName       Strategy = "class name"
	StrategyTagName         Strategy = "tag name"
)

// Locator identifies zero or more elements of the rendered page. Matches are always
// reported in document order.
type Locator struct {
	Strategy Strategy
	Value    string
}

func ByID(identifier string) Locator {
	return Locator{Strategy: StrategyID, Value: identifier}
}

func ByName(name string) Locator {
	return Locator{Strategy: StrategyName, Value: name}
}

func ByCSS(selector string) Locator {
	return Locator{Strategy: StrategyCSS, Value: selector}
}

func ByXPath(expression string) Locator {
	return Locator{Strategy: StrategyXPath, Value: expression}
}

// ByLinkText matches anchors whose whitespace-normalised text equals linkText.
func ByLinkText(linkText string) Locator {
	return Locator{Strategy: StrategyLinkText, Value: linkText}
}

// ByPartialLinkText matches anchors whose whitespace-normalised text contains fragment.
func ByPartialLinkText(fragment string) Locator {
	return Locator{Strategy: StrategyPartialLinkText, Value: fragment}
}

func ByClassName(className string) Locator {
	return Locator{Strategy: StrategyClassName, Value: className}
}

func ByTagName(tagName string) Locator {
	return Locator{Strategy: StrategyTagName, Value: tagName}
}

func (locator Locator) String() string {
	return fmt.Sprintf("%s=%s", locator.Strategy, locator.Value)
}

// Expression returns the CSS selector or XPath expression the locator resolves to.
// isXPath reports which of the two it is.
func (locator Locator) Expression() (expression string, isXPath bool) {
	switch locator.Strategy {
	case StrategyID:
		return attributeSelector("id", locator.Value), false
	case StrategyName:
		return attributeSelector("name", locator.Value), false
	case StrategyClassName:
		return fmt.Sprintf("[class~=%s]", cssString(locator.Value)), false
	case StrategyTagName:
		return strings.TrimSpace(locator.Value), false
	case StrategyXPath:
		return locator.Value, true
	case StrategyLinkText:
		return fmt.Sprintf("//a[normalize-space(.)=%s]", XPathLiteral(strings.TrimSpace(locator.Value))), true
	case StrategyPartialLinkText:
		return fmt.Sprintf("//a[contains(normalize-space(.), %s)]", XPathLiteral(strings.TrimSpace(locator.Value))), true
	default:
		return locator.Value, false
	}
}

// resolveScript returns a JavaScript expression evaluating to the array of matched nodes.
func (locator Locator) resolveScript() string {
	expression, isXPath := locator.Expression()
	if isXPath {
		return fmt.Sprintf(`(function(expression){
  var matches = [];
  var snapshot = document.evaluate(expression, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
  for (var index = 0; index < snapshot.snapshotLength; index++) {
    var node = snapshot.snapshotItem(index);
    if (node && node.nodeType === 1) { matches.push(node); }
  }
  return matches;
})(%s)`, jsString(expression))
	}
	return fmt.Sprintf(`Array.prototype.slice.call(document.querySelectorAll(%s))`, jsString(expression))
}

// XPathLiteral quotes value as an XPath 1.0 string literal. XPath has no escape
// sequences, so values holding both quote kinds are assembled with concat().
func XPathLiteral(value string) string {
	if !strings.Contains(value, "'") {
		return "'" + value + "'"
	}
	if !strings.Contains(value, `"`) {
		return `"` + value + `"`
	}
	segments := strings.Split(value, "'")
	parts := make([]string, 0, len(segments)*2)
	for index, segment := range segments {
		if index > 0 {
			parts = append(parts, `"'"`)
		}
		if segment != "" {
			parts = append(parts, "'"+segment+"'")
		}
	}
	return "concat(" + strings.Join(parts, ", ") + ")"
}

func attributeSelector(attributeName string, value string) string {
	return fmt.Sprintf("[%s=%s]", attributeName, cssString(value))
}

func cssString(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	return `"` + escaped + `"`
}

func jsString(value string) string {
	encoded, _ := json.Marshal(value)
	return string(encoded)
}
