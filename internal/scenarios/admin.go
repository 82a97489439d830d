package scenarios

import (
	"context"

	"github.com/samber/lo"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/check"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	groupAdminHome     = "admin-home"
	groupAddProduct    = "add-product"
	groupDeleteProduct = "delete-product"
	groupUpdateStock   = "update-stock"

	addedProductPrice   = 12345
	addedProductStock   = 10
	stockProductPrice   = 789
	stockProductStock   = 20
	reducedProductStock = 15
)

func adminScenarios() []harness.Scenario {
	return []harness.Scenario{
		{Name: "admin-home/loads", Group: groupAdminHome, Run: adminHomeLoads},
		{Name: "admin-home/cards", Group: groupAdminHome, Run: adminHomeShowsCards},
		{Name: "admin-home/links", Group: groupAdminHome, Run: adminHomeLinksNavigate},
		{Name: "admin-home/table", Group: groupAdminHome, Run: adminTableMatchesStore},
		{Name: "admin-home/back", Group: groupAdminHome, Run: adminHomeBackToIndex},
		{Name: "add-product/loads", Group: groupAddProduct, Run: addProductLoads},
		{Name: "add-product/fields", Group: groupAddProduct, Run: addProductShowsFields},
		{Name: "add-product/add", Group: groupAddProduct, Run: addProductReachesStore},
		{Name: "add-product/duplicate", Group: groupAddProduct, Run: duplicateProductRejected},
		{Name: "add-product/back", Group: groupAddProduct, Run: addProductBack},
		{Name: "delete-product/existing", Group: groupDeleteProduct, Run: deleteExistingProduct},
		{Name: "delete-product/nonexistent", Group: groupDeleteProduct, Run: deleteAbsentProduct},
		{Name: "delete-product/back", Group: groupDeleteProduct, Run: deleteProductBack},
		{Name: "update-stock/reduce", Group: groupUpdateStock, Run: reduceStockReachesStore},
		{Name: "update-stock/nonexistent", Group: groupUpdateStock, Run: updateAbsentProductStock},
		{Name: "update-stock/back", Group: groupUpdateStock, Run: updateStockBack},
	}
}

// openAdminPage signs in a fresh administrator and opens path.
func openAdminPage(ctx context.Context, testCase *harness.Case, path string) error {
	if _, loginErr := loginAdmin(ctx, testCase); loginErr != nil {
		return loginErr
	}
	return testCase.Navigate(ctx, path)
}

func adminHomeLoads(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAdminHome); openErr != nil {
		return openErr
	}
	return expectText(ctx, testCase, pageHeading, TextAdmin)
}

func adminHomeShowsCards(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAdminHome); openErr != nil {
		return openErr
	}
	cards, cardsErr := testCase.Elements(ctx, dashboardCards)
	if cardsErr != nil {
		return cardsErr
	}
	return harness.Compare(testCase, 1, len(cards), check.AtLeast())
}

func adminHomeLinksNavigate(ctx context.Context, testCase *harness.Case) error {
	if _, loginErr := loginAdmin(ctx, testCase); loginErr != nil {
		return loginErr
	}
	destinations := []struct {
		link string
		path string
	}{
		{LinkAddProduct, PathAddProduct},
		{LinkDeleteProducts, PathDeleteProduct},
		{LinkUpdateStock, PathUpdateStock},
	}
	for _, destination := range destinations {
		if navigateErr := testCase.Navigate(ctx, PathAdminHome); navigateErr != nil {
			return navigateErr
		}
		if clickErr := testCase.Click(ctx, browser.ByPartialLinkText(destination.link)); clickErr != nil {
			return clickErr
		}
		if urlErr := expectURLContains(ctx, testCase, destination.path); urlErr != nil {
			return urlErr
		}
	}
	return nil
}

func adminTableMatchesStore(ctx context.Context, testCase *harness.Case) error {
	if _, productErr := SeedProduct(ctx, testCase, fixtureProductPrefix, fixtureProductPrice, fixtureProductStock); productErr != nil {
		return productErr
	}
	if openErr := openAdminPage(ctx, testCase, PathAdminHome); openErr != nil {
		return openErr
	}
	table, tableErr := testCase.Table(ctx, productTable)
	if tableErr != nil {
		return tableErr
	}
	requiredHeaders := []string{HeaderProductName, HeaderPrice, HeaderStock}
	if compareErr := harness.Compare(testCase, requiredHeaders, table.Headers, check.AnyContains()); compareErr != nil {
		return compareErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	stored, storedErr := store.ProductNamesLike(ctx, "")
	if storedErr != nil {
		return storedErr
	}
	return harness.Compare(testCase, stored, table.Column(HeaderProductName), check.SetSubset[string]())
}

func adminHomeBackToIndex(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAdminHome); openErr != nil {
		return openErr
	}
	if clickErr := testCase.Click(ctx, browser.ByLinkText(LinkBackToIndex)); clickErr != nil {
		return clickErr
	}
	return expectURLContains(ctx, testCase, PathLogin)
}

func addProductLoads(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAddProduct); openErr != nil {
		return openErr
	}
	return expectText(ctx, testCase, addProductTitle, TextAddNewProduct)
}

func addProductShowsFields(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAddProduct); openErr != nil {
		return openErr
	}
	for _, field := range []browser.Locator{productNameField, priceField, stockField, addProductButton} {
		if _, visibleErr := testCase.VisibleElement(ctx, field); visibleErr != nil {
			return visibleErr
		}
	}
	return nil
}

func submitProduct(ctx context.Context, testCase *harness.Case, name string, price int64, stock int64) error {
	if fillErr := fillForm(ctx, testCase,
		formField{productNameField, name},
		formField{priceField, formatInt(price)},
		formField{stockField, formatInt(stock)},
	); fillErr != nil {
		return fillErr
	}
	return testCase.Click(ctx, addProductButton)
}

func addProductReachesStore(ctx context.Context, testCase *harness.Case) error {
	if openErr := openAdminPage(ctx, testCase, PathAddProduct); openErr != nil {
		return openErr
	}
	name := shopdata.UniqueName(fixtureProductPrefix)
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	testCase.Cleanup("delete added product "+name, func(ctx context.Context) error {
		return store.DeleteProductByName(ctx, name)
	})
	if submitErr := submitProduct(ctx, testCase, name, addedProductPrice, addedProductStock); submitErr != nil {
		return submitErr
	}
	if urlErr := expectURLContains(ctx, testCase, PathAdminHome); urlErr != nil {
		return urlErr
	}

	var added shopdata.Product
	if waitErr := waitForStore(ctx, testCase, "product "+name+" stored", func(ctx context.Context) (bool, error) {
		product, found, lookupErr := store.ProductByName(ctx, name)
		added = product
		return found, lookupErr
	}); waitErr != nil {
		return waitErr
	}
	if compareErr := harness.Compare(testCase, extract.AmountFromInt(addedProductPrice), added.Price, check.NumericEqualityWithRounding(currencyPrecision)); compareErr != nil {
		return compareErr
	}
	return harness.Compare(testCase, int64(addedProductStock), added.Stock, check.ExactEquality[int64]())
}

func duplicateProductRejected(ctx context.Context, testCase *harness.Case) error {
	existing, productErr := SeedProduct(ctx, testCase, fixtureProductPrefix, fixtureProductPrice, fixtureProductStock)
	if productErr != nil {
		return productErr
	}
	if openErr := openAdminPage(ctx, testCase, PathAddProduct); openErr != nil {
		return openErr
	}
	if submitErr := submitProduct(ctx, testCase, existing.Name, addedProductPrice, addedProductStock); submitErr != nil {
		return submitErr
	}
	if _, visibleErr := testCase.VisibleElement(ctx, errorMessage); visibleErr != nil {
		return visibleErr
	}
	if textErr := expectText(ctx, testCase, errorMessage, TextProductExists); textErr != nil {
		return textErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	names, namesErr := store.ProductNamesLike(ctx, existing.Name)
	if namesErr != nil {
		return namesErr
	}
	copies := lo.Count(names, existing.Name)
	return harness.Compare(testCase, 1, copies, check.ExactEquality[int]())
}

func addProductBack(ctx context.Context, testCase *harness.Case) error {
	return backReturnsToDashboard(ctx, testCase, PathAddProduct, browser.ByLinkText(LinkBack))
}

func deleteProductBack(ctx context.Context, testCase *harness.Case) error {
	return backReturnsToDashboard(ctx, testCase, PathDeleteProduct, backButton)
}

func updateStockBack(ctx context.Context, testCase *harness.Case) error {
	return backReturnsToDashboard(ctx, testCase, PathUpdateStock, backButton)
}

func backReturnsToDashboard(ctx context.Context, testCase *harness.Case, path string, back browser.Locator) error {
	if openErr := openAdminPage(ctx, testCase, path); openErr != nil {
		return openErr
	}
	if clickErr := testCase.Click(ctx, back); clickErr != nil {
		return clickErr
	}
	return expectURLContains(ctx, testCase, PathAdminHome)
}

func deleteExistingProduct(ctx context.Context, testCase *harness.Case) error {
	product, productErr := SeedProduct(ctx, testCase, "DeleteProbe", fixtureProductPrice, fixtureProductStock)
	if productErr != nil {
		return productErr
	}
	if openErr := openAdminPage(ctx, testCase, PathDeleteProduct); openErr != nil {
		return openErr
	}
	if fillErr := testCase.Fill(ctx, productIDField, formatInt(product.ID)); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.Click(ctx, deleteButton); clickErr != nil {
		return clickErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	return waitForStore(ctx, testCase, "product "+product.Name+" deleted", func(ctx context.Context) (bool, error) {
		_, found, lookupErr := store.ProductByID(ctx, product.ID)
		return !found, lookupErr
	})
}

// requireAbsentProduct skips the case when the sentinel id is occupied.
func requireAbsentProduct(ctx context.Context, testCase *harness.Case) error {
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	_, found, lookupErr := store.ProductByID(ctx, absentProductID)
	if lookupErr != nil {
		return lookupErr
	}
	if found {
		return harness.Skipf("product %d exists", absentProductID)
	}
	return nil
}

func expectProductStillAbsent(ctx context.Context, testCase *harness.Case) error {
	if _, bodyErr := testCase.Element(ctx, pageBody); bodyErr != nil {
		return bodyErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	_, found, lookupErr := store.ProductByID(ctx, absentProductID)
	if lookupErr != nil {
		return lookupErr
	}
	return harness.Compare(testCase, false, found, check.ExactEquality[bool]())
}

func deleteAbsentProduct(ctx context.Context, testCase *harness.Case) error {
	if absentErr := requireAbsentProduct(ctx, testCase); absentErr != nil {
		return absentErr
	}
	if openErr := openAdminPage(ctx, testCase, PathDeleteProduct); openErr != nil {
		return openErr
	}
	if fillErr := testCase.Fill(ctx, productIDField, formatInt(absentProductID)); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.Click(ctx, deleteButton); clickErr != nil {
		return clickErr
	}
	return expectProductStillAbsent(ctx, testCase)
}

func checkProduct(ctx context.Context, testCase *harness.Case, productID int64) error {
	if fillErr := testCase.Fill(ctx, productIDField, formatInt(productID)); fillErr != nil {
		return fillErr
	}
	return testCase.Click(ctx, checkProductButton)
}

func reduceStockReachesStore(ctx context.Context, testCase *harness.Case) error {
	product, productErr := SeedProduct(ctx, testCase, "StockProbe", stockProductPrice, stockProductStock)
	if productErr != nil {
		return productErr
	}
	if openErr := openAdminPage(ctx, testCase, PathUpdateStock); openErr != nil {
		return openErr
	}
	if checkErr := checkProduct(ctx, testCase, product.ID); checkErr != nil {
		return checkErr
	}
	if fillErr := testCase.Fill(ctx, newStockField, formatInt(reducedProductStock)); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.Click(ctx, updateStockButton); clickErr != nil {
		return clickErr
	}

	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	var stored int64
	if waitErr := waitForStore(ctx, testCase, "stock changed for "+product.Name, func(ctx context.Context) (bool, error) {
		current, found, lookupErr := store.ProductByID(ctx, product.ID)
		stored = current.Stock
		return found && current.Stock != product.Stock, lookupErr
	}); waitErr != nil {
		return waitErr
	}
	return harness.Compare(testCase, int64(reducedProductStock), stored, check.ExactEquality[int64]())
}

func updateAbsentProductStock(ctx context.Context, testCase *harness.Case) error {
	if absentErr := requireAbsentProduct(ctx, testCase); absentErr != nil {
		return absentErr
	}
	if openErr := openAdminPage(ctx, testCase, PathUpdateStock); openErr != nil {
		return openErr
	}
	if checkErr := checkProduct(ctx, testCase, absentProductID); checkErr != nil {
		return checkErr
	}
	if _, updateErr := testCase.WaitUntil(ctx, wait.AnyOf(wait.ElementAbsent(newStockField), wait.ElementPresent(errorMessage))); updateErr != nil {
		return updateErr
	}
	return expectProductStillAbsent(ctx, testCase)
}
