package scenarios

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/browser"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	fixtureCustomerPrefix = "user"
	fixtureAdminPrefix    = "admin"
	fixtureProductPrefix  = "TestProduct"
	fixturePassword       = "CustPass123"
	fixtureProductPrice   = 500
	fixtureProductStock   = 10
	absentProductID       = int64(999999)
)

// Account is a seeded login.
type Account struct {
	ID       int64
	Username string
	Password string
	Role     string
}

// SeedCustomer creates a uniquely named customer and deletes it, cart included, on teardown.
func SeedCustomer(ctx context.Context, testCase *harness.Case) (Account, error) {
	return seedAccount(ctx, testCase, fixtureCustomerPrefix, model.RoleCustomer)
}

// SeedAdmin creates a uniquely named administrator.
func SeedAdmin(ctx context.Context, testCase *harness.Case) (Account, error) {
	return seedAccount(ctx, testCase, fixtureAdminPrefix, model.RoleAdmin)
}

func seedAccount(ctx context.Context, testCase *harness.Case, prefix string, role string) (Account, error) {
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return Account{}, storeErr
	}
	account := Account{Username: shopdata.UniqueName(prefix), Password: fixturePassword, Role: role}
	userID, createErr := store.CreateUser(ctx, account.Username, account.Password, role)
	if createErr != nil {
		return Account{}, createErr
	}
	account.ID = userID
	testCase.Cleanup("delete user "+account.Username, func(ctx context.Context) error {
		return store.DeleteUser(ctx, account.Username)
	})
	return account, nil
}

// SeedProduct creates a uniquely named product and deletes it on teardown.
func SeedProduct(ctx context.Context, testCase *harness.Case, prefix string, price float64, stock int) (shopdata.Product, error) {
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return shopdata.Product{}, storeErr
	}
	name := shopdata.UniqueName(prefix)
	productID, createErr := store.CreateProduct(ctx, name, price, stock)
	if createErr != nil {
		return shopdata.Product{}, createErr
	}
	testCase.Cleanup("delete product "+name, func(ctx context.Context) error {
		return store.DeleteProduct(ctx, productID)
	})
	product, found, lookupErr := store.ProductByID(ctx, productID)
	if lookupErr != nil {
		return shopdata.Product{}, lookupErr
	}
	if !found {
		return shopdata.Product{}, fmt.Errorf("seeded product %s vanished", name)
	}
	return product, nil
}

// SeedCart gives customer a single line of a freshly seeded in-stock product at 500.
func SeedCart(ctx context.Context, testCase *harness.Case, customer Account) (shopdata.Product, error) {
	product, productErr := SeedProduct(ctx, testCase, fixtureProductPrefix, fixtureProductPrice, fixtureProductStock)
	if productErr != nil {
		return shopdata.Product{}, productErr
	}
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return shopdata.Product{}, storeErr
	}
	if _, seedErr := store.SeedCartIfEmpty(ctx, customer.ID, product.ID, 1); seedErr != nil {
		return shopdata.Product{}, seedErr
	}
	return product, nil
}

// seedCartFromStock fills an empty cart from whatever is in stock and skips the case
// when nothing is.
func seedCartFromStock(ctx context.Context, testCase *harness.Case, customer Account) error {
	store, storeErr := testCase.Store()
	if storeErr != nil {
		return storeErr
	}
	_, seedErr := store.SeedCartWithAnyInStock(ctx, customer.ID)
	if errors.Is(seedErr, shopdata.ErrNoStock) {
		return harness.Skipf("no products in stock to seed cart")
	}
	return seedErr
}

// LoginAs signs in through the login form and waits for the role's home page.
func LoginAs(ctx context.Context, testCase *harness.Case, account Account) error {
	if navigateErr := testCase.Navigate(ctx, PathLogin); navigateErr != nil {
		return navigateErr
	}
	if fillErr := fillForm(ctx, testCase,
		formField{loginUsername, account.Username},
		formField{loginPassword, account.Password},
	); fillErr != nil {
		return fillErr
	}
	if clickErr := testCase.Click(ctx, loginButton); clickErr != nil {
		return clickErr
	}
	_, waitErr := testCase.WaitUntil(ctx, wait.URLContains(homePath(account.Role)))
	return waitErr
}

func homePath(role string) string {
	if role == model.RoleAdmin {
		return PathAdminHome
	}
	return PathCustomerHome
}

// loginCustomer seeds a customer and signs in as it.
func loginCustomer(ctx context.Context, testCase *harness.Case) (Account, error) {
	customer, seedErr := SeedCustomer(ctx, testCase)
	if seedErr != nil {
		return Account{}, seedErr
	}
	return customer, LoginAs(ctx, testCase, customer)
}

// loginAdmin seeds an administrator and signs in as it.
func loginAdmin(ctx context.Context, testCase *harness.Case) (Account, error) {
	admin, seedErr := SeedAdmin(ctx, testCase)
	if seedErr != nil {
		return Account{}, seedErr
	}
	return admin, LoginAs(ctx, testCase, admin)
}

type formField struct {
	locator browser.Locator
	value   string
}

// fillForm types each value into its field, in order.
func fillForm(ctx context.Context, testCase *harness.Case, fields ...formField) error {
	for _, field := range fields {
		if fillErr := testCase.Fill(ctx, field.locator, field.value); fillErr != nil {
			return fillErr
		}
	}
	return nil
}

// waitForStore blocks until probe holds against the store, replacing post-click sleeps.
func waitForStore(ctx context.Context, testCase *harness.Case, description string, probe func(ctx context.Context) (bool, error)) error {
	_, waitErr := testCase.WaitUntil(ctx, wait.Func(description, probe))
	return waitErr
}

func formatInt(value int64) string {
	return strconv.FormatInt(value, 10)
}
