package storage_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/testutil"
)

const (
	testProductNameValue             = "Walnut Desk"
	testProductPriceValue            = 122000.0
	testProductStockValue            = 4
	testCustomerUsername             = "customer_storage"
	testUnsupportedDriverName        = "unsupported-driver"
	testUnsupportedDriverDescription = "unsupported driver"
	testMissingDriverDescription     = "missing driver"
	testMissingDataSourceDescription = "missing data source"
	testRollbackMessage              = "roll back"
)

func TestOpenDatabaseWithSQLiteConfiguration(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	database, openErr := storage.OpenDatabase(sqliteDatabase.Configuration())
	require.NoError(t, openErr)
	database = testutil.ConfigureDatabaseLogger(t, database)
	require.NotNil(t, database)

	require.NoError(t, storage.AutoMigrate(database))

	product, productErr := model.NewProduct(testProductNameValue, testProductPriceValue, testProductStockValue)
	require.NoError(t, productErr)
	require.NoError(t, database.Create(&product).Error)

	cartItem := model.CartItem{UserID: 1, ProductID: product.ID, Quantity: 2, Bought: model.CartBoughtNo}
	require.NoError(t, database.Create(&cartItem).Error)

	var fetchedProduct model.Product
	require.NoError(t, database.First(&fetchedProduct, "id = ?", product.ID).Error)
	require.Equal(t, testProductNameValue, fetchedProduct.Name)

	duplicate, duplicateErr := model.NewProduct(testProductNameValue, 1, 1)
	require.NoError(t, duplicateErr)
	require.Error(t, database.Create(&duplicate).Error)
}

func TestOpenDatabaseValidation(t *testing.T) {
	sqliteDatabase := testutil.NewSQLiteTestDatabase(t)

	testCases := []struct {
		name              string
		configuration     storage.Config
		expectedRootError error
	}{
		{
			name: testMissingDriverDescription,
			configuration: storage.Config{
				DriverName:     "",
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrMissingDatabaseDriverName,
		},
		{
			name: testUnsupportedDriverDescription,
			configuration: storage.Config{
				DriverName:     testUnsupportedDriverName,
				DataSourceName: sqliteDatabase.DataSourceName(),
			},
			expectedRootError: storage.ErrUnsupportedDatabaseDriver,
		},
		{
			name: testMissingDataSourceDescription,
			configuration: storage.Config{
				DriverName:     storage.DriverNameSQLite,
				DataSourceName: "",
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
		{
			name: "missing mysql data source",
			configuration: storage.Config{
				DriverName: storage.DriverNameMySQL,
			},
			expectedRootError: storage.ErrMissingDataSourceName,
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(testingT *testing.T) {
			_, openErr := storage.OpenDatabase(testCase.configuration)
			require.Error(testingT, openErr)
			require.True(testingT, errors.Is(openErr, testCase.expectedRootError))
		})
	}
}

func TestEnsureAdminIsIdempotent(t *testing.T) {
	database := testutil.NewShopDatabase(t)

	require.NoError(t, storage.EnsureAdmin(database, storage.DefaultAdminUsername, storage.DefaultAdminPassword))
	require.NoError(t, storage.EnsureAdmin(database, storage.DefaultAdminUsername, "changed"))

	var admins []model.User
	require.NoError(t, database.Where("username = ?", storage.DefaultAdminUsername).Find(&admins).Error)
	require.Len(t, admins, 1)
	require.Equal(t, model.RoleAdmin, admins[0].Role)
	require.Equal(t, model.PasswordDigest(storage.DefaultAdminPassword), admins[0].Password)

	require.Error(t, storage.EnsureAdmin(database, " ", storage.DefaultAdminPassword))
}

func TestEnsureProductsKeepsExistingRows(t *testing.T) {
	database := testutil.NewShopDatabase(t)

	desk, deskErr := model.NewProduct(testProductNameValue, testProductPriceValue, testProductStockValue)
	require.NoError(t, deskErr)
	require.NoError(t, storage.EnsureProducts(database, []model.Product{desk}))

	reseeded, reseededErr := model.NewProduct(testProductNameValue, 1, 1)
	require.NoError(t, reseededErr)
	lamp, lampErr := model.NewProduct("Brass Lamp", 2500, 7)
	require.NoError(t, lampErr)
	require.NoError(t, storage.EnsureProducts(database, []model.Product{reseeded, lamp}))
	require.NoError(t, storage.EnsureProducts(database, nil))

	var products []model.Product
	require.NoError(t, database.Order("name").Find(&products).Error)
	require.Len(t, products, 2)
	require.Equal(t, "Brass Lamp", products[0].Name)
	require.Equal(t, testProductStockValue, products[1].Stock)
}

func TestReaderQueryAndExecute(t *testing.T) {
	database := testutil.NewShopDatabase(t)
	observedCore, observedLogs := observer.New(zapcore.DebugLevel)
	reader := storage.NewReader(database, zap.New(observedCore))
	ctx := context.Background()

	inserted, insertErr := reader.Execute(ctx,
		"INSERT INTO users (username, password, role) VALUES (?, ?, ?)",
		testCustomerUsername, model.PasswordDigest("secret"), model.RoleCustomer,
	)
	require.NoError(t, insertErr)
	require.Equal(t, int64(1), inserted)

	row, queryErr := reader.QueryOne(ctx, "SELECT id, username, role FROM users WHERE username = ?", testCustomerUsername)
	require.NoError(t, queryErr)
	require.NotNil(t, row)
	username, usernameErr := row.String("username")
	require.NoError(t, usernameErr)
	require.Equal(t, testCustomerUsername, username)
	identifier, identifierErr := row.Int64("id")
	require.NoError(t, identifierErr)
	require.Positive(t, identifier)

	_, missingColumnErr := row.Int64("stock")
	require.ErrorIs(t, missingColumnErr, storage.ErrMissingColumn)

	absent, absentErr := reader.QueryOne(ctx, "SELECT id FROM users WHERE username = ?", "nobody")
	require.NoError(t, absentErr)
	require.Nil(t, absent)

	deleted, deleteErr := reader.Execute(ctx, "DELETE FROM users WHERE username = ?", testCustomerUsername)
	require.NoError(t, deleteErr)
	require.Equal(t, int64(1), deleted)

	require.Positive(t, observedLogs.FilterMessage("store_statement").Len())
}

func TestReaderRejectsPlaceholderMismatch(t *testing.T) {
	reader := storage.NewReader(testutil.NewShopDatabase(t), nil)

	_, queryErr := reader.Query(context.Background(), "SELECT id FROM users WHERE username = 'abc'", "abc")
	require.ErrorIs(t, queryErr, storage.ErrStore)
	require.ErrorIs(t, queryErr, storage.ErrParameterMismatch)

	_, executeErr := reader.Execute(context.Background(), "DELETE FROM users WHERE username = ?")
	require.ErrorIs(t, executeErr, storage.ErrParameterMismatch)
}

func TestReaderWrapsDatabaseFailures(t *testing.T) {
	reader := storage.NewReader(testutil.NewShopDatabase(t), nil)

	_, queryErr := reader.Query(context.Background(), "SELECT id FROM missing_table WHERE id = ?", 1)
	require.ErrorIs(t, queryErr, storage.ErrStore)

	var operationErr *storage.OperationError
	require.True(t, errors.As(queryErr, &operationErr))
	require.Equal(t, storage.OperationQuery, operationErr.Operation)
	require.Contains(t, operationErr.Statement, "missing_table")
}

func TestReaderScanIntoModels(t *testing.T) {
	database := testutil.NewShopDatabase(t)
	reader := storage.NewReader(database, nil)

	product, productErr := model.NewProduct(testProductNameValue, testProductPriceValue, testProductStockValue)
	require.NoError(t, productErr)
	require.NoError(t, database.Create(&product).Error)

	var products []model.Product
	require.NoError(t, reader.Scan(context.Background(), &products, "SELECT id, name, price, stock FROM products WHERE stock > ?", 0))
	require.Len(t, products, 1)
	require.Equal(t, testProductNameValue, products[0].Name)
	require.InDelta(t, testProductPriceValue, products[0].Price, 0.001)
}

func TestReaderTransactionRollsBackOnError(t *testing.T) {
	reader := storage.NewReader(testutil.NewShopDatabase(t), nil)
	ctx := context.Background()

	transactionErr := reader.Transaction(ctx, func(transaction *storage.Reader) error {
		if _, insertErr := transaction.Execute(ctx,
			"INSERT INTO products (name, price, stock) VALUES (?, ?, ?)", testProductNameValue, 10.5, 1,
		); insertErr != nil {
			return insertErr
		}
		return errors.New(testRollbackMessage)
	})
	require.ErrorContains(t, transactionErr, testRollbackMessage)
	require.NotErrorIs(t, transactionErr, storage.ErrStore)

	rows, queryErr := reader.Query(ctx, "SELECT id FROM products WHERE name = ?", testProductNameValue)
	require.NoError(t, queryErr)
	require.Empty(t, rows)
}

func TestReaderWithConnectionScopesStatements(t *testing.T) {
	reader := storage.NewReader(testutil.NewShopDatabase(t), nil)
	ctx := context.Background()

	var counted int64
	connectionErr := reader.WithConnection(ctx, func(connection *storage.Reader) error {
		if _, insertErr := connection.Execute(ctx,
			"INSERT INTO products (name, price, stock) VALUES (?, ?, ?)", testProductNameValue, 500, 2,
		); insertErr != nil {
			return insertErr
		}
		row, queryErr := connection.QueryOne(ctx, "SELECT COUNT(*) AS total FROM products WHERE stock > ?", 0)
		if queryErr != nil {
			return queryErr
		}
		var countErr error
		counted, countErr = row.Int64("total")
		return countErr
	})
	require.NoError(t, connectionErr)
	require.Equal(t, int64(1), counted)

	var nilReader *storage.Reader
	require.ErrorIs(t, nilReader.WithConnection(ctx, func(*storage.Reader) error { return nil }), storage.ErrStore)
}

func TestReaderScopesReportDatabaseFailuresAsStoreErrors(t *testing.T) {
	database := testutil.NewShopDatabase(t)
	reader := storage.NewReader(database, nil)
	sqlDatabase, handleErr := database.DB()
	require.NoError(t, handleErr)
	require.NoError(t, sqlDatabase.Close())

	testCases := []struct {
		name      string
		operation string
		run       func(body func(*storage.Reader) error) error
	}{
		{
			name:      "transaction",
			operation: storage.OperationTransaction,
			run: func(body func(*storage.Reader) error) error {
				return reader.Transaction(context.Background(), body)
			},
		},
		{
			name:      "connection",
			operation: storage.OperationConnection,
			run: func(body func(*storage.Reader) error) error {
				return reader.WithConnection(context.Background(), body)
			},
		},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			bodyRan := false
			scopeErr := testCase.run(func(*storage.Reader) error {
				bodyRan = true
				return nil
			})
			require.False(t, bodyRan)
			require.ErrorIs(t, scopeErr, storage.ErrStore)
			var operationErr *storage.OperationError
			require.True(t, errors.As(scopeErr, &operationErr))
			require.Equal(t, testCase.operation, operationErr.Operation)
		})
	}
}

func TestCountPlaceholdersIgnoresQuotedText(t *testing.T) {
	require.Equal(t, 2, storage.CountPlaceholders("SELECT id FROM cart WHERE user_id = ? AND product_id = ? AND bought = 'no'"))
	require.Equal(t, 1, storage.CountPlaceholders("SELECT id FROM products WHERE name = ? AND note <> 'why?'"))
	require.Zero(t, storage.CountPlaceholders("SELECT `weird?column` FROM products"))
}

func TestRowConversions(t *testing.T) {
	row := storage.Row{
		"decimal_text": []byte("500.00"),
		"integer_text": "42",
		"real":         float64(7),
		"fraction":     12.5,
		"unsigned":     uint64(9),
		"nothing":      nil,
	}

	price, priceErr := row.Float64("decimal_text")
	require.NoError(t, priceErr)
	require.InDelta(t, 500.0, price, 0.0001)

	integer, integerErr := row.Int64("integer_text")
	require.NoError(t, integerErr)
	require.Equal(t, int64(42), integer)

	whole, wholeErr := row.Int64("real")
	require.NoError(t, wholeErr)
	require.Equal(t, int64(7), whole)

	_, fractionErr := row.Int64("fraction")
	require.ErrorIs(t, fractionErr, storage.ErrColumnType)

	unsigned, unsignedErr := row.Float64("unsigned")
	require.NoError(t, unsignedErr)
	require.InDelta(t, 9.0, unsigned, 0.0001)

	require.True(t, row.IsNull("nothing"))
	require.False(t, row.IsNull("absent"))
	text, textErr := row.String("decimal_text")
	require.NoError(t, textErr)
	require.Equal(t, "500.00", text)
}
