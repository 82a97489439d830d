package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/testutil"
)

const (
	testApplicationAddress = "127.0.0.1:18080"
	testShopBasePath       = "/shop"
	testAdminPassword      = "stub-secret"
	testLoginPath          = "/shop/index.php"
	testAdminHomePath      = "/shop/admin/admin_home.php"
)

func executeStub(testingT *testing.T, application *StubApplication, arguments ...string) error {
	testingT.Helper()
	command, commandErr := application.Command()
	require.NoError(testingT, commandErr)
	output := &bytes.Buffer{}
	command.SetOut(output)
	command.SetErr(output)
	command.SetArgs(arguments)
	return command.Execute()
}

func TestStubRequiresAdminPassword(testingT *testing.T) {
	application := NewStubApplication().WithDatabaseOpener(func(configuration storage.Config) (*gorm.DB, error) {
		testingT.Fatalf("database opener invoked with %s", configuration.DataSourceName)
		return nil, nil
	})

	executeErr := executeStub(testingT, application, "--admin-password", "")
	require.ErrorContains(testingT, executeErr, missingConfigurationMessage)
	require.ErrorContains(testingT, executeErr, flagNameAdminPassword)
}

func TestStubRejectsArguments(testingT *testing.T) {
	executeErr := executeStub(testingT, NewStubApplication(), "extra")
	require.ErrorContains(testingT, executeErr, unexpectedArgumentsMessage)
}

func TestStubServesConfiguredServer(testingT *testing.T) {
	database := testutil.NewShopDatabase(testingT)
	application := NewStubApplication().WithDatabaseOpener(func(storage.Config) (*gorm.DB, error) {
		return database, nil
	})
	var served *http.Server
	application.serve = func(_ context.Context, server *http.Server, _ *zap.Logger) error {
		served = server
		return nil
	}

	require.NoError(testingT, executeStub(testingT, application,
		"--app-addr", testApplicationAddress,
		"--shop-base-path", testShopBasePath,
		"--admin-password", testAdminPassword,
	))
	require.NotNil(testingT, served)
	require.Equal(testingT, testApplicationAddress, served.Addr)

	var productCount int64
	require.NoError(testingT, database.Model(&model.Product{}).Count(&productCount).Error)
	require.EqualValues(testingT, len(demoCatalogue), productCount)
}

func TestBuildAppSeedsAdministratorAndCatalogue(testingT *testing.T) {
	gin.SetMode(gin.TestMode)
	database := testutil.NewShopDatabase(testingT)
	application := NewStubApplication().WithDatabaseOpener(func(storage.Config) (*gorm.DB, error) {
		return database, nil
	})
	stubConfig := StubConfig{
		AdminUsername: storage.DefaultAdminUsername,
		AdminPassword: testAdminPassword,
		SeedProducts:  true,
	}
	stubConfig.App.ShopBasePath = testShopBasePath
	logger := zaptest.NewLogger(testingT)

	_, firstErr := application.buildApp(stubConfig, logger)
	require.NoError(testingT, firstErr)
	app, secondErr := application.buildApp(stubConfig, logger)
	require.NoError(testingT, secondErr)

	var products []model.Product
	require.NoError(testingT, database.Find(&products).Error)
	require.Len(testingT, products, len(demoCatalogue))

	server := httptest.NewServer(app.Router())
	testingT.Cleanup(server.Close)
	client := server.Client()
	client.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	response, postErr := client.PostForm(server.URL+testLoginPath, url.Values{
		"username": {storage.DefaultAdminUsername},
		"password": {testAdminPassword},
	})
	require.NoError(testingT, postErr)
	defer response.Body.Close()
	require.Equal(testingT, http.StatusFound, response.StatusCode)
	require.Equal(testingT, testAdminHomePath, response.Header.Get("Location"))
}

func TestSeedDatabaseWithoutCatalogue(testingT *testing.T) {
	database := testutil.NewShopDatabase(testingT)
	require.NoError(testingT, seedDatabase(database, StubConfig{
		AdminUsername: storage.DefaultAdminUsername,
		AdminPassword: storage.DefaultAdminPassword,
	}))

	var productCount int64
	require.NoError(testingT, database.Model(&model.Product{}).Count(&productCount).Error)
	require.Zero(testingT, productCount)

	var admin model.User
	require.NoError(testingT, database.Where("username = ?", storage.DefaultAdminUsername).First(&admin).Error)
	require.Equal(testingT, model.RoleAdmin, admin.Role)
}
