package model_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	testProductName  = "  Walnut Desk "
	testTrimmedName  = "Walnut Desk"
	testTaskTitle    = " Water the plants "
	testTrimmedTitle = "Water the plants"
)

func TestNewProductValidatesAndNormalizes(testingT *testing.T) {
	product, productErr := model.NewProduct(testProductName, 12345.678, 10)
	require.NoError(testingT, productErr)
	require.Equal(testingT, testTrimmedName, product.Name)
	require.InDelta(testingT, 12345.68, product.Price, 0.0001)
	require.Equal(testingT, 10, product.Stock)

	testCases := []struct {
		name        string
		productName string
		price       float64
		stock       int
		expectedErr error
	}{
		{name: "blank name", productName: "   ", price: 1, stock: 1, expectedErr: model.ErrInvalidProductName},
		{name: "negative price", productName: testTrimmedName, price: -1, stock: 1, expectedErr: model.ErrInvalidProductPrice},
		{name: "price beyond decimal(10,2)", productName: testTrimmedName, price: 1e9, stock: 1, expectedErr: model.ErrInvalidProductPrice},
		{name: "negative stock", productName: testTrimmedName, price: 1, stock: -5, expectedErr: model.ErrInvalidProductStock},
	}
	for _, testCase := range testCases {
		testingT.Run(testCase.name, func(t *testing.T) {
			_, validationErr := model.NewProduct(testCase.productName, testCase.price, testCase.stock)
			require.ErrorIs(t, validationErr, testCase.expectedErr)
		})
	}
}

func TestNormalizeRole(testingT *testing.T) {
	adminRole, adminErr := model.NormalizeRole(" Admin ")
	require.NoError(testingT, adminErr)
	require.Equal(testingT, model.RoleAdmin, adminRole)

	defaultRole, defaultErr := model.NormalizeRole("")
	require.NoError(testingT, defaultErr)
	require.Equal(testingT, model.RoleCustomer, defaultRole)

	_, invalidErr := model.NormalizeRole("superuser")
	require.ErrorIs(testingT, invalidErr, model.ErrInvalidRole)
}

func TestNewTask(testingT *testing.T) {
	task, taskErr := model.NewTask(testTaskTitle, "WEEKLY")
	require.NoError(testingT, taskErr)
	require.Equal(testingT, testTrimmedTitle, task.Title)
	require.Equal(testingT, model.TaskCategoryWeekly, task.Category)
	require.False(testingT, task.Completed)

	_, titleErr := model.NewTask("  ", model.TaskCategoryDaily)
	require.ErrorIs(testingT, titleErr, model.ErrInvalidTaskTitle)

	_, categoryErr := model.NewTask(testTaskTitle, "yearly")
	require.ErrorIs(testingT, categoryErr, model.ErrInvalidTaskCategory)
}

func TestTableNamesMatchShopSchema(testingT *testing.T) {
	require.Equal(testingT, "users", model.User{}.TableName())
	require.Equal(testingT, "products", model.Product{}.TableName())
	require.Equal(testingT, "cart", model.CartItem{}.TableName())
	require.Equal(testingT, "tasks", model.Task{}.TableName())
}

func TestPasswordDigestMatchesMySQLMD5(testingT *testing.T) {
	require.Equal(testingT, "0192023a7bbd73250516f069df18b500", model.PasswordDigest("admin123"))
}
