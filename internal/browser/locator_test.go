package browser_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

func TestLocatorExpression(testingT *testing.T) {
	testCases := []struct {
		name               string
		locator            browser.Locator
		expectedExpression string
		expectedXPath      bool
	}{
		{
			name:               "identifier",
			locator:            browser.ByID("username"),
			expectedExpression: `[id="username"]`,
		},
		{
			name:               "name with brackets",
			locator:            browser.ByName("quantities[42]"),
			expectedExpression: `[name="quantities[42]"]`,
		},
		{
			name:               "class name",
			locator:            browser.ByClassName("add-btn"),
			expectedExpression: `[class~="add-btn"]`,
		},
		{
			name:               "tag name",
			locator:            browser.ByTagName(" h2 "),
			expectedExpression: "h2",
		},
		{
			name:               "css passthrough",
			locator:            browser.ByCSS("button.login-btn"),
			expectedExpression: "button.login-btn",
		},
		{
			name:               "xpath passthrough",
			locator:            browser.ByXPath("//h3[contains(text(),'Total Price')]"),
			expectedExpression: "//h3[contains(text(),'Total Price')]",
			expectedXPath:      true,
		},
		{
			name:               "link text",
			locator:            browser.ByLinkText("Logout"),
			expectedExpression: "//a[normalize-space(.)='Logout']",
			expectedXPath:      true,
		},
		{
			name:               "partial link text",
			locator:            browser.ByPartialLinkText("Continue"),
			expectedExpression: "//a[contains(normalize-space(.), 'Continue')]",
			expectedXPath:      true,
		},
		{
			name:               "quoted identifier",
			locator:            browser.ByID(`odd"id`),
			expectedExpression: `[id="odd\"id"]`,
		},
	}

	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(t *testing.T) {
			expression, isXPath := testCase.locator.Expression()
			require.Equal(t, testCase.expectedExpression, expression)
			require.Equal(t, testCase.expectedXPath, isXPath)
		})
	}
}

func TestXPathLiteral(testingT *testing.T) {
	require.Equal(testingT, "'plain'", browser.XPathLiteral("plain"))
	require.Equal(testingT, `"it's"`, browser.XPathLiteral("it's"))
	require.Equal(testingT, `concat('say "hi" it', "'", 's')`, browser.XPathLiteral(`say "hi" it's`))
}

func TestLocatorString(testingT *testing.T) {
	require.Equal(testingT, "link text=← Back to Index", browser.ByLinkText("← Back to Index").String())
}

func TestProbeScriptEmbedsEscapedExpression(testingT *testing.T) {
	script := browser.ProbeScript(browser.ByXPath(`//td[contains(text(), "Task")]`))
	require.True(testingT, strings.Contains(script, `document.evaluate(expression`))
	require.True(testingT, strings.Contains(script, `"//td[contains(text(), \"Task\")]"`))

	cssScript := browser.ProbeScript(browser.ByCSS(".product-box h3"))
	require.True(testingT, strings.Contains(cssScript, `document.querySelectorAll(".product-box h3")`))
}

func TestElementAttributeLookupIsCaseInsensitive(testingT *testing.T) {
	element := browser.Element{Attributes: map[string]string{"href": "/css/style.css"}}
	value, found := element.Attribute("HREF")
	require.True(testingT, found)
	require.Equal(testingT, "/css/style.css", value)

	_, missing := element.Attribute("src")
	require.False(testingT, missing)
}
