package shopdata_test

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/testutil"
)

const (
	testCustomerPassword = "CustPass123"
	testProductPrefix    = "TestProduct"
	testCustomerPrefix   = "user"
)

func newStore(testingT *testing.T) *shopdata.Store {
	testingT.Helper()
	return shopdata.NewStore(storage.NewReader(testutil.NewShopDatabase(testingT), nil))
}

func TestCreateAndDeleteUser(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()
	username := shopdata.UniqueName(testCustomerPrefix)

	userID, createErr := store.CreateUser(ctx, username, testCustomerPassword, model.RoleCustomer)
	require.NoError(testingT, createErr)
	require.Positive(testingT, userID)

	foundID, found, lookupErr := store.UserID(ctx, username)
	require.NoError(testingT, lookupErr)
	require.True(testingT, found)
	require.Equal(testingT, userID, foundID)

	row, queryErr := store.Reader().QueryOne(ctx, "SELECT password FROM users WHERE id = ?", userID)
	require.NoError(testingT, queryErr)
	digest, digestErr := row.String("password")
	require.NoError(testingT, digestErr)
	require.Equal(testingT, model.PasswordDigest(testCustomerPassword), digest)

	_, duplicateErr := store.CreateUser(ctx, username, testCustomerPassword, model.RoleCustomer)
	require.ErrorIs(testingT, duplicateErr, storage.ErrStore)

	require.NoError(testingT, store.DeleteUser(ctx, username))
	require.NoError(testingT, store.DeleteUser(ctx, username))
	_, stillFound, _ := store.UserID(ctx, username)
	require.False(testingT, stillFound)

	_, roleErr := store.CreateUser(ctx, username, testCustomerPassword, "owner")
	require.ErrorIs(testingT, roleErr, model.ErrInvalidRole)
}

func TestUniqueNameFormat(testingT *testing.T) {
	first := shopdata.UniqueName(testProductPrefix)
	second := shopdata.UniqueName(testProductPrefix)
	require.NotEqual(testingT, first, second)
	require.True(testingT, strings.HasPrefix(first, testProductPrefix+"_"))
	require.Len(testingT, first, len(testProductPrefix)+1+12)
}

func TestSeedCartIfEmptyIsIdempotent(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()

	userID, userErr := store.CreateUser(ctx, shopdata.UniqueName(testCustomerPrefix), testCustomerPassword, model.RoleCustomer)
	require.NoError(testingT, userErr)
	productID, productErr := store.CreateProduct(ctx, shopdata.UniqueName(testProductPrefix), 500, 5)
	require.NoError(testingT, productErr)

	firstSeeded, firstErr := store.SeedCartIfEmpty(ctx, userID, productID, 1)
	require.NoError(testingT, firstErr)
	require.True(testingT, firstSeeded)

	secondSeeded, secondErr := store.SeedCartIfEmpty(ctx, userID, productID, 1)
	require.NoError(testingT, secondErr)
	require.False(testingT, secondSeeded)

	lines, linesErr := store.CartLines(ctx, userID)
	require.NoError(testingT, linesErr)
	require.Len(testingT, lines, 1)

	_, invalidErr := store.SeedCartIfEmpty(ctx, userID, productID, 0)
	require.Error(testingT, invalidErr)
}

func TestSeedCartIfEmptyUnderConcurrentCallers(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()

	userID, userErr := store.CreateUser(ctx, shopdata.UniqueName(testCustomerPrefix), testCustomerPassword, model.RoleCustomer)
	require.NoError(testingT, userErr)
	productID, productErr := store.CreateProduct(ctx, shopdata.UniqueName(testProductPrefix), 500, 5)
	require.NoError(testingT, productErr)

	var waitGroup sync.WaitGroup
	for callerIndex := 0; callerIndex < 4; callerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			_, _ = store.SeedCartIfEmpty(ctx, userID, productID, 1)
		}()
	}
	waitGroup.Wait()

	lines, linesErr := store.CartLines(ctx, userID)
	require.NoError(testingT, linesErr)
	require.Len(testingT, lines, 1)
}

func TestSeededCartTotalMatchesRenderedAmount(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()

	userID, userErr := store.CreateUser(ctx, shopdata.UniqueName(testCustomerPrefix), testCustomerPassword, model.RoleCustomer)
	require.NoError(testingT, userErr)
	productName := shopdata.UniqueName(testProductPrefix)
	productID, productErr := store.CreateProduct(ctx, productName, 500, 3)
	require.NoError(testingT, productErr)

	_, seedErr := store.SeedCartIfEmpty(ctx, userID, productID, 1)
	require.NoError(testingT, seedErr)

	lines, linesErr := store.CartLines(ctx, userID)
	require.NoError(testingT, linesErr)
	require.Len(testingT, lines, 1)
	require.Equal(testingT, productID, lines[0].ProductID)
	require.Equal(testingT, productName, lines[0].Name)
	require.Equal(testingT, int64(1), lines[0].Quantity)
	require.Zero(testingT, lines[0].Price.Cmp(extract.AmountFromInt(500)))

	total, totalErr := store.CartTotal(ctx, userID)
	require.NoError(testingT, totalErr)
	rendered, parseErr := extract.AmountAfterSymbol("Total Price: ₹500.00", "₹")
	require.NoError(testingT, parseErr)
	require.Zero(testingT, total.Cmp(rendered))

	quantity, found, quantityErr := store.CartQuantity(ctx, userID, productID)
	require.NoError(testingT, quantityErr)
	require.True(testingT, found)
	require.Equal(testingT, int64(1), quantity)

	cleared, clearErr := store.ClearCart(ctx, userID)
	require.NoError(testingT, clearErr)
	require.Equal(testingT, int64(1), cleared)
	emptyTotal, emptyErr := store.CartTotal(ctx, userID)
	require.NoError(testingT, emptyErr)
	require.True(testingT, emptyTotal.IsZero())
}

func TestSeedCartWithAnyInStock(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()

	userID, userErr := store.CreateUser(ctx, shopdata.UniqueName(testCustomerPrefix), testCustomerPassword, model.RoleCustomer)
	require.NoError(testingT, userErr)

	_, noStockErr := store.SeedCartWithAnyInStock(ctx, userID)
	require.ErrorIs(testingT, noStockErr, shopdata.ErrNoStock)

	_, soldOutErr := store.CreateProduct(ctx, shopdata.UniqueName(testProductPrefix), 10, 0)
	require.NoError(testingT, soldOutErr)
	inStockID, inStockErr := store.CreateProduct(ctx, shopdata.UniqueName(testProductPrefix), 20, 2)
	require.NoError(testingT, inStockErr)

	seeded, seedErr := store.SeedCartWithAnyInStock(ctx, userID)
	require.NoError(testingT, seedErr)
	require.True(testingT, seeded)

	lines, linesErr := store.CartLines(ctx, userID)
	require.NoError(testingT, linesErr)
	require.Len(testingT, lines, 1)
	require.Equal(testingT, inStockID, lines[0].ProductID)
}

func TestDeleteAbsentProductIsIdempotent(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()
	const absentProductID = int64(999999)

	_, foundBefore, beforeErr := store.ProductByID(ctx, absentProductID)
	require.NoError(testingT, beforeErr)
	require.False(testingT, foundBefore)

	require.NoError(testingT, store.DeleteProduct(ctx, absentProductID))

	_, foundAfter, afterErr := store.ProductByID(ctx, absentProductID)
	require.NoError(testingT, afterErr)
	require.False(testingT, foundAfter)
}

func TestProductLookupsAndSearch(testingT *testing.T) {
	store := newStore(testingT)
	ctx := context.Background()

	deskName := shopdata.UniqueName("Desk")
	lampName := shopdata.UniqueName("Lamp")
	deskID, deskErr := store.CreateProduct(ctx, deskName, 121999.99, 4)
	require.NoError(testingT, deskErr)
	_, lampErr := store.CreateProduct(ctx, lampName, 500, 1)
	require.NoError(testingT, lampErr)

	desk, found, lookupErr := store.ProductByName(ctx, deskName)
	require.NoError(testingT, lookupErr)
	require.True(testingT, found)
	require.Equal(testingT, deskID, desk.ID)
	require.Equal(testingT, int64(4), desk.Stock)
	expectedPrice, _ := extract.ParseAmount("121999.99")
	require.Zero(testingT, desk.Price.Cmp(expectedPrice))

	names, searchErr := store.ProductNamesLike(ctx, "Desk")
	require.NoError(testingT, searchErr)
	require.Equal(testingT, []string{deskName}, names)

	require.NoError(testingT, store.DeleteProductByName(ctx, deskName))
	_, stillFound, _ := store.ProductByName(ctx, deskName)
	require.False(testingT, stillFound)
	require.NoError(testingT, store.DeleteProductByName(ctx, deskName))
}

func TestTaskHelpers(testingT *testing.T) {
	database := testutil.NewShopDatabase(testingT)
	store := shopdata.NewStore(storage.NewReader(database, nil))
	ctx := context.Background()
	title := shopdata.UniqueName("Test Task")

	task, taskErr := model.NewTask(title, model.TaskCategoryWeekly)
	require.NoError(testingT, taskErr)
	task.Completed = true
	require.NoError(testingT, database.Create(&task).Error)

	stored, found, lookupErr := store.TaskByTitle(ctx, title)
	require.NoError(testingT, lookupErr)
	require.True(testingT, found)
	require.Equal(testingT, model.TaskCategoryWeekly, stored.Category)
	require.True(testingT, stored.Completed)

	deleted, deleteErr := store.DeleteTasksByTitle(ctx, title)
	require.NoError(testingT, deleteErr)
	require.Equal(testingT, int64(1), deleted)
	_, stillFound, _ := store.TaskByTitle(ctx, title)
	require.False(testingT, stillFound)
}
