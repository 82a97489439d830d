// Package scenarios is the Mini Shop and todo verification catalogue.
package scenarios

import (
	"fmt"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
)

// Page paths relative to the shop base URL.
const (
	PathLogin         = "index.php"
	PathSignup        = "signup.php"
	PathCustomerHome  = "customer/customer_home.php"
	PathCart          = "customer/cart.php"
	PathPay           = "customer/pay.php"
	PathAdminHome     = "admin/admin_home.php"
	PathAddProduct    = "admin/add_product.php"
	PathDeleteProduct = "admin/delete_product.php"
	PathUpdateStock   = "admin/update_stock.php"
	PathTodo          = "index.php"
)

// Texts the pages render.
const (
	TextInvalidLogin       = "Invalid username or password."
	TextAccountCreated     = "Account created successfully"
	TextUsernameTaken      = "Username already taken"
	TextPasswordMismatch   = "Passwords do not match"
	TextShopTitle          = "Mini Shop"
	TextWelcome            = "Welcome"
	TextYourCart           = "Your Cart"
	TextPaymentSummary     = "Payment Summary"
	TextSuccessfullyBought = "successfully bought"
	TextAdmin              = "Admin"
	TextAddNewProduct      = "Add New Product"
	TextProductExists      = "Product already exists"
	TextCurrencySymbol     = "₹"
	SessionCookieName      = "PHPSESSID"
	LinkLogout             = "Logout"
	LinkContinue           = "Continue"
	LinkAddProduct         = "Add Product"
	LinkDeleteProducts     = "Delete Products"
	LinkUpdateStock        = "Update Stock"
	LinkBackToIndex        = "← Back to Index"
	LinkBack               = "⬅ Back"
	HeaderProductName      = "Product Name"
	HeaderPrice            = "Price (₹)"
	HeaderStock            = "Stock"
)

var (
	loginUsername = browser.ByID("username")
	loginPassword = browser.ByID("password")
	loginButton   = browser.ByCSS("button.login-btn")
	errorMessage  = browser.ByClassName("error")

	signupUsername = browser.ByID("username")
	signupPassword = browser.ByID("password")
	signupConfirm  = browser.ByID("confirm")
	signupButton   = browser.ByCSS("button.signup-btn")
	successMessage = browser.ByClassName("success")

	pageHeading       = browser.ByTagName("h2")
	productBoxes      = browser.ByClassName("product-box")
	productBoxNames   = browser.ByCSS(".product-box h3")
	totalPriceHeading = browser.ByXPath("//h3[contains(text(),'Total Price')]")
	cartRows          = browser.ByCSS("table tr")
	updateCartButton  = browser.ByName("update_cart")
	payNowButton      = browser.ByName("pay_now")
	payButton         = browser.ByTagName("button")
	purchaseMessage   = browser.ByClassName("message")
	payBackLink       = browser.ByXPath("//div[@class='back-btn']/a")

	dashboardCards = browser.ByClassName("card")
	productTable   = browser.ByTagName("table")

	addProductTitle  = browser.ByClassName("add-product-title")
	productNameField = browser.ByID("name")
	priceField       = browser.ByID("price")
	stockField       = browser.ByID("stock")
	addProductButton = browser.ByClassName("add-btn")

	productIDField     = browser.ByID("product_id")
	deleteButton       = browser.ByClassName("delete-btn")
	backButton         = browser.ByClassName("back-btn")
	checkProductButton = browser.ByName("check_product")
	newStockField      = browser.ByID("new_stock")
	updateStockButton  = browser.ByName("update_stock")

	stylesheetLinks = browser.ByTagName("link")
	pageBody        = browser.ByTagName("body")

	taskTitleField     = browser.ByName("title")
	taskCategorySelect = browser.ByName("category")
	taskSubmitButton   = browser.ByCSS("button[type='submit']")
	updateTasksButton  = browser.ByName("update_tasks")
)

const (
	productBoxQualifier = "//div[contains(@class,'product-box')][.//h3[normalize-space(.)=%s]]"
	taskRowQualifier    = "//td[contains(text(), %s)]/.."
)

func cartQuantityField(productID int64) browser.Locator {
	return browser.ByName(fmt.Sprintf("quantities[%d]", productID))
}

func productBox(productName string) string {
	return fmt.Sprintf(productBoxQualifier, browser.XPathLiteral(productName))
}

func productBoxPart(productName string, className string) browser.Locator {
	return browser.ByXPath(fmt.Sprintf("%s//*[contains(concat(' ', normalize-space(@class), ' '), ' %s ')]", productBox(productName), className))
}

func taskRow(title string) string {
	return fmt.Sprintf(taskRowQualifier, browser.XPathLiteral(title))
}

func taskCell(title string) browser.Locator {
	return browser.ByXPath(fmt.Sprintf("//td[contains(text(), %s)]", browser.XPathLiteral(title)))
}

func taskCheckbox(title string) browser.Locator {
	return browser.ByXPath(taskRow(title) + "//input[@type='checkbox']")
}

func taskDeleteLink(title string) browser.Locator {
	return browser.ByXPath(taskRow(title) + "//a[normalize-space(.)='Delete']")
}
