package scenarios

import (
	"context"
	"net/url"
	"strings"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	groupCustomerHome = "customer-home"
	groupCart         = "cart"
	groupPay          = "pay"

	currencyPrecision = 2
	searchParameter   = "search"
)

func customerScenarios() []harness.Scenario {
	return []harness.Scenario{
		{Name: "customer-home/loads", Group: groupCustomerHome, Run: customerHomeLoads},
		{Name: "customer-home/listing", Group: groupCustomerHome, Run: customerHomeListsProducts},
		{Name: "customer-home/search", Group: groupCustomerHome, Run: searchResultsComeFromStore},
		{Name: "customer-home/add-to-cart", Group: groupCustomerHome, Run: addToCartReachesStore},
		{Name: "customer-home/logout", Group: groupCustomerHome, Run: customerHomeLogout},
		{Name: "cart/loads", Group: groupCart, Run: cartLoads},
		{Name: "cart/rows", Group: groupCart, Run: cartShowsSeededRows},
		{Name: "cart/update-quantity", Group: groupCart, Run: cartQuantityUpdateReachesStore},
		{Name: "cart/total", Group: groupCart, Run: cartTotalMatchesStore},
		{Name: "cart/pay-button", Group: groupCart, Run: cartShowsPayButton},
		{Name: "cart/continue-shopping", Group: groupCart, Run: cartContinueShopping},
		{Name: "cart/logout", Group: groupCart, Run: cartLogout},
		{Name: "pay/loads", Group: groupPay, Run: payLoads},
		{Name: "pay/summary", Group: groupPay, Run: paySummaryMatchesStore},
		{Name: "pay/purchase", Group: groupPay, Run: purchaseEmptiesCart},
		{Name: "pay/back", Group: groupPay, Run: payBackReturnsHome},
	}
}

func customerHomeLoads(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}
	title, titleErr := testCase.Title(ctx)
	if titleErr != nil {
		return titleErr
	}
	if compareErr := harness.Compare(testCase, TextShopTitle, title, check.Contains()); compareErr != nil {
		return compareErr
	}
	return expectText(ctx, testCase, pageHeading, TextWelcome)
}

func customerHomeListsProducts(ctx context.Context, testCase *harness.Case) error {
	if _, productErr := SeedProduct(ctx, testCase, fixtureProductPrefix, fixtureProductPrice, fixtureProductStock); productErr != nil {
		return productErr
	}
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}
	boxes, boxesErr := testCase.Elements(ctx, productBoxes)
	if boxesErr != nil {
		return boxesErr
	}
	return harness.Compare(testCase, 1, len(boxes), check.AtLeast())
}

func searchResultsComeFromStore(ctx context.Context, testCase *harness.Case) error {
	if _, productErr := SeedProduct(ctx, testCase, "SearchProbe", fixtureProductPrice, fixtureProductStock); productErr != nil {
		return productErr
	}
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}
	firstName, nameErr := testCase.Text(ctx, productBoxNames)
	if nameErr != nil {
		return nameErr
	}
	words := strings.Fields(firstName)
	if len(words) == 0 {
		return harness.Skipf("first product has no name to search for")
	}
	query := words[0]

	if navigateErr := testCase.Navigate(ctx, PathCustomerHome+"?"+url.Values{searchParameter: {query}}.Encode()); navigateErr != nil {
		return navigateErr
	}
	shown, shownErr := testCase.Elements(ctx, productBoxNames)
	if shownErr != nil {
		return shownErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	stored, storedErr := store.ProductNamesLike(ctx, query)
	if storedErr != nil {
		return storedErr
	}
	return harness.Compare(testCase, stored, extract.Texts(shown), check.SetSubset[string]())
}

func addToCartReachesStore(ctx context.Context, testCase *harness.Case) error {
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	product, productErr := SeedProduct(ctx, testCase, "CartProbe", fixtureProductPrice, fixtureProductStock)
	if productErr != nil {
		return productErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}

	quantityInput := productBoxPart(product.Name, "qty-input")
	if clickErr := testCase.ClickScript(ctx, productBoxPart(product.Name, "plus")); clickErr != nil {
		return clickErr
	}
	input, inputErr := testCase.Element(ctx, quantityInput)
	if inputErr != nil {
		return inputErr
	}
	chosen, parseErr := extract.ParseCount(input.Value)
	if parseErr != nil {
		return parseErr
	}
	if clickErr := testCase.ClickScript(ctx, productBoxPart(product.Name, "add-btn")); clickErr != nil {
		return clickErr
	}

	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	var stored int64
	if waitErr := waitForStore(ctx, testCase, "cart row for "+product.Name, func(ctx context.Context) (bool, error) {
		quantity, found, quantityErr := store.CartQuantity(ctx, customer.ID, product.ID)
		stored = quantity
		return found, quantityErr
	}); waitErr != nil {
		return waitErr
	}
	return harness.Compare(testCase, stored, chosen, check.ExactEquality[int64]())
}

func customerHomeLogout(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCustomerHome); navigateErr != nil {
		return navigateErr
	}
	return logoutReturnsToLogin(ctx, testCase)
}

func logoutReturnsToLogin(ctx context.Context, testCase *harness.Case) error {
	before, urlErr := testCase.URL(ctx)
	if urlErr != nil {
		return urlErr
	}
	if clickErr := testCase.Click(ctx, browser.ByLinkText(LinkLogout)); clickErr != nil {
		return clickErr
	}
	if _, changeErr := testCase.WaitUntil(ctx, wait.URLChanged(before)); changeErr != nil {
		return changeErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.AnyOf(wait.URLContains(PathLogin), wait.URLContains("login")))
	return waitErr
}

func cartLoads(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.PageContains(TextYourCart))
	return waitErr
}

func cartShowsSeededRows(ctx context.Context, testCase *harness.Case) error {
	if _, productErr := SeedProduct(ctx, testCase, fixtureProductPrefix, fixtureProductPrice, fixtureProductStock); productErr != nil {
		return productErr
	}
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	if seedErr := seedCartFromStock(ctx, testCase, customer); seedErr != nil {
		return seedErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	lines, linesErr := store.CartLines(ctx, customer.ID)
	if linesErr != nil {
		return linesErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	rows, rowsErr := testCase.Elements(ctx, cartRows)
	if rowsErr != nil {
		return rowsErr
	}
	return harness.Compare(testCase, len(lines)+1, len(rows), check.AtLeast())
}

// firstCartLine returns the first stored line, reporting an empty cart as a violation.
func firstCartLine(testCase *harness.Case, lines []shopdata.CartLine) (shopdata.CartLine, error) {
	if compareErr := harness.Compare(testCase, 1, len(lines), check.AtLeast()); compareErr != nil {
		return shopdata.CartLine{}, compareErr
	}
	return lines[0], nil
}

func cartQuantityUpdateReachesStore(ctx context.Context, testCase *harness.Case) error {
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	if _, seedErr := SeedCart(ctx, testCase, customer); seedErr != nil {
		return seedErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	lines, linesErr := store.CartLines(ctx, customer.ID)
	if linesErr != nil {
		return linesErr
	}
	line, lineErr := firstCartLine(testCase, lines)
	if lineErr != nil {
		return lineErr
	}
	requested := line.Quantity + 1

	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	if fillErr := testCase.Fill(ctx, cartQuantityField(line.ProductID), formatInt(requested)); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.ClickScript(ctx, updateCartButton); clickErr != nil {
		return clickErr
	}

	var stored int64
	if waitErr := waitForStore(ctx, testCase, "cart quantity changed for "+line.Name, func(ctx context.Context) (bool, error) {
		quantity, found, quantityErr := store.CartQuantity(ctx, customer.ID, line.ProductID)
		stored = quantity
		return found && quantity != line.Quantity, quantityErr
	}); waitErr != nil {
		return waitErr
	}
	return harness.Compare(testCase, stored, requested, check.ExactEquality[int64]())
}

func cartTotalMatchesStore(ctx context.Context, testCase *harness.Case) error {
	return totalMatchesStore(ctx, testCase, PathCart)
}

func paySummaryMatchesStore(ctx context.Context, testCase *harness.Case) error {
	return totalMatchesStore(ctx, testCase, PathPay)
}

func totalMatchesStore(ctx context.Context, testCase *harness.Case, path string) error {
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	if _, seedErr := SeedCart(ctx, testCase, customer); seedErr != nil {
		return seedErr
	}
	if navigateErr := testCase.Navigate(ctx, path); navigateErr != nil {
		return navigateErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	stored, totalErr := store.CartTotal(ctx, customer.ID)
	if totalErr != nil {
		return totalErr
	}
	shown, amountErr := testCase.Amount(ctx, totalPriceHeading, TextCurrencySymbol)
	if amountErr != nil {
		return amountErr
	}
	return harness.Compare(testCase, stored, shown, check.NumericEqualityWithRounding(currencyPrecision))
}

func cartShowsPayButton(ctx context.Context, testCase *harness.Case) error {
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	if _, seedErr := SeedCart(ctx, testCase, customer); seedErr != nil {
		return seedErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	_, visibleErr := testCase.VisibleElement(ctx, payNowButton)
	return visibleErr
}

func cartContinueShopping(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	if clickErr := testCase.Click(ctx, browser.ByPartialLinkText(LinkContinue)); clickErr != nil {
		return clickErr
	}
	return expectURLContains(ctx, testCase, PathCustomerHome)
}

func cartLogout(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathCart); navigateErr != nil {
		return navigateErr
	}
	return logoutReturnsToLogin(ctx, testCase)
}

func payLoads(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathPay); navigateErr != nil {
		return navigateErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.PageContains(TextPaymentSummary))
	return waitErr
}

func purchaseEmptiesCart(ctx context.Context, testCase *harness.Case) error {
	customer, loginErr := loginCustomer(ctx, testCase)
	if loginErr != nil {
		return loginErr
	}
	if _, seedErr := SeedCart(ctx, testCase, customer); seedErr != nil {
		return seedErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	before, beforeErr := store.CartLines(ctx, customer.ID)
	if beforeErr != nil {
		return beforeErr
	}
	if compareErr := harness.Compare(testCase, 1, len(before), check.AtLeast()); compareErr != nil {
		return compareErr
	}

	if navigateErr := testCase.Navigate(ctx, PathPay); navigateErr != nil {
		return navigateErr
	}
	if clickErr := testCase.ClickScript(ctx, payButton); clickErr != nil {
		return clickErr
	}
	message, messageErr := testCase.Text(ctx, purchaseMessage)
	if messageErr != nil {
		return messageErr
	}
	if compareErr := harness.Compare(testCase, TextSuccessfullyBought, strings.ToLower(message), check.Contains()); compareErr != nil {
		return compareErr
	}
	after, afterErr := store.CartLines(ctx, customer.ID)
	if afterErr != nil {
		return afterErr
	}
	return harness.Compare(testCase, 0, len(after), check.ExactEquality[int]())
}

func payBackReturnsHome(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginCustomer(ctx, testCase); loginErr != nil {
		return loginErr
	}
	if navigateErr := testCase.Navigate(ctx, PathPay); navigateErr != nil {
		return navigateErr
	}
	if clickErr := testCase.Click(ctx, payBackLink); clickErr != nil {
		return clickErr
	}
	if urlErr := expectURLContains(ctx, testCase, PathCustomerHome); urlErr != nil {
		return urlErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.AnyOf(wait.PageContains("Cart"), wait.PageContains("Products")))
	return waitErr
}
