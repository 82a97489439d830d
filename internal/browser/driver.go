package browser

import (
	"context"
	"fmt"
	"strings"
)

// Element is a read-only snapshot of one matched DOM element taken at probe time.
type Element struct {
	Index      int               `json:"index"`
	TagName    string            `json:"tagName"`
	Text       string            `json:"text"`
	Value      string            `json:"value"`
	Visible    bool              `json:"visible"`
	Enabled    bool              `json:"enabled"`
	Attributes map[string]string `json:"attributes"`
	OuterHTML  string            `json:"outerHTML"`
}

// Attribute returns the named attribute and whether the element carries it.
func (element Element) Attribute(name string) (string, bool) {
	value, found := element.Attributes[strings.ToLower(name)]
	return value, found
}

// Cookie is a browser cookie visible to the current page.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	HTTPOnly bool
	Secure   bool
}

// Driver is the client side of the browser-control channel for one session.
type Driver interface {
	Navigate(ctx context.Context, targetURL string) error
	CurrentURL(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	Source(ctx context.Context) (string, error)
	Probe(ctx context.Context, locator Locator) ([]Element, error)
	Click(ctx context.Context, locator Locator) error
	ClickScript(ctx context.Context, locator Locator) error
	Clear(ctx context.Context, locator Locator) error
	Type(ctx context.Context, locator Locator, text string) error
	SelectOption(ctx context.Context, locator Locator, value string) error
	Cookies(ctx context.Context) ([]Cookie, error)
	ClearCookies(ctx context.Context) error
	Reload(ctx context.Context) error
	Screenshot(ctx context.Context) ([]byte, error)
	Evaluate(ctx context.Context, script string, destination any) error
}

// NoMatchError reports an interaction against a locator that matched nothing.
type NoMatchError struct {
	Locator Locator
}

func (err NoMatchError) Error() string {
	return fmt.Sprintf("browser: no element matches %s", err.Locator)
}

const probeScriptTemplate = `(function(matches){
  return matches.map(function(element, index){
    var style = window.getComputedStyle(element);
    var rectangles = element.getClientRects();
    var visible = style.display !== 'none' && style.visibility !== 'hidden' &&
      (element.offsetWidth > 0 || element.offsetHeight > 0 || rectangles.length > 0);
    var attributes = {};
    for (var attributeIndex = 0; attributeIndex < element.attributes.length; attributeIndex++) {
      var attribute = element.attributes[attributeIndex];
      attributes[attribute.name.toLowerCase()] = attribute.value;
    }
    var value = '';
    if (typeof element.value === 'string') { value = element.value; }
    return {
      index: index,
      tagName: element.tagName.toLowerCase(),
      text: (element.innerText || element.textContent || '').replace(/\s+/g, ' ').trim(),
      value: value,
      visible: visible,
      enabled: !element.disabled,
      attributes: attributes,
      outerHTML: element.outerHTML
    };
  });
})(%s)`

const clickScriptTemplate = `(function(matches){
  if (!matches.length) { return false; }
  matches[0].scrollIntoView(true);
  matches[0].click();
  return true;
})(%s)`

const selectOptionScriptTemplate = `(function(matches, value){
  if (!matches.length) { return false; }
  var element = matches[0];
  element.value = value;
  element.dispatchEvent(new Event('input', { bubbles: true }));
  element.dispatchEvent(new Event('change', { bubbles: true }));
  return element.value === value;
})(%s, %s)`

// ProbeScript returns the script that snapshots every element matched by locator.
func ProbeScript(locator Locator) string {
	return fmt.Sprintf(probeScriptTemplate, locator.resolveScript())
}

func clickScript(locator Locator) string {
	return fmt.Sprintf(clickScriptTemplate, locator.resolveScript())
}

func selectOptionScript(locator Locator, value string) string {
	return fmt.Sprintf(selectOptionScriptTemplate, locator.resolveScript(), jsString(value))
}
