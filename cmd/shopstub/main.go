package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopapp"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
)

const (
	commandUseName                   = "shopstub"
	commandShortDescription          = "Serve the Mini Shop stand-in"
	commandLongDescription           = "Serve a Go stand-in of the Mini Shop and todo applications over a local database"
	missingConfigurationMessage      = "missing required configuration"
	loggerCreationErrorMessage       = "logger"
	logEventListening                = "listening"
	logEventShutdown                 = "shutting_down"
	logFieldAddress                  = "addr"
	logFieldShopPath                 = "shop_path"
	logFieldTodoPath                 = "todo_path"
	flagNameApplicationAddress       = "app-addr"
	flagNameDatabaseDriver           = "db-driver"
	flagNameDatabaseDataSourceName   = "db-dsn"
	flagNameShopBasePath             = "shop-base-path"
	flagNameTodoBasePath             = "todo-base-path"
	flagNameAdminUsername            = "admin-username"
	flagNameAdminPassword            = "admin-password"
	flagNameSessionKey               = "session-key"
	flagNameSeedProducts             = "seed-products"
	flagUsageApplicationAddress      = "address for the HTTP server to listen on"
	flagUsageDatabaseDriver          = "database driver (sqlite or mysql)"
	flagUsageDatabaseDataSourceName  = "data source name of the shop database"
	flagUsageShopBasePath            = "path the shop is mounted under"
	flagUsageTodoBasePath            = "path the todo application is mounted under"
	flagUsageAdminUsername           = "administrator created when missing"
	flagUsageAdminPassword           = "password of the administrator created when missing"
	flagUsageSessionKey              = "cookie signing key; random per process when empty"
	flagUsageSeedProducts            = "add a small demo catalogue when its products are missing"
	environmentKeyApplicationAddress = "APP_ADDR"
	environmentKeyDatabaseDriver     = "DB_DRIVER"
	environmentKeyDatabaseDataSource = "DB_DSN"
	environmentKeyShopBasePath       = "SHOP_BASE_PATH"
	environmentKeyTodoBasePath       = "TODO_BASE_PATH"
	environmentKeyAdminUsername      = "ADMIN_USERNAME"
	environmentKeyAdminPassword      = "ADMIN_PASSWORD"
	environmentKeySessionKey         = "SESSION_KEY"
	environmentKeySeedProducts       = "SEED_PRODUCTS"
	defaultApplicationAddress        = ":8080"
	defaultDatabaseDriver            = storage.DriverNameSQLite
	defaultDatabaseDataSourceName    = "file:shopstub?mode=memory&cache=shared&_foreign_keys=on"
	defaultSeedProducts              = true
	loggerContextOpenDatabase        = "open_db"
	loggerContextAutoMigrate         = "migrate"
	loggerContextSeed                = "seed"
	loggerContextServer              = "server"
	readHeaderTimeout                = 5 * time.Second
	shutdownTimeout                  = 10 * time.Second
	unexpectedArgumentsMessage       = "unexpected command arguments"
	commandInitializationFailure     = "failed to configure command"
	flagNotDefinedMessage            = "flag %s not defined"
	environmentConfigurationError    = "failed to apply environment configuration"
)

type configurationKey struct {
	environmentKey string
	flagName       string
}

var configurationKeys = []configurationKey{
	{environmentKey: environmentKeyApplicationAddress, flagName: flagNameApplicationAddress},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver},
	{environmentKey: environmentKeyDatabaseDataSource, flagName: flagNameDatabaseDataSourceName},
	{environmentKey: environmentKeyShopBasePath, flagName: flagNameShopBasePath},
	{environmentKey: environmentKeyTodoBasePath, flagName: flagNameTodoBasePath},
	{environmentKey: environmentKeyAdminUsername, flagName: flagNameAdminUsername},
	{environmentKey: environmentKeyAdminPassword, flagName: flagNameAdminPassword},
	{environmentKey: environmentKeySessionKey, flagName: flagNameSessionKey},
	{environmentKey: environmentKeySeedProducts, flagName: flagNameSeedProducts},
}

// demoCatalogue is what a fresh stand-in sells.
var demoCatalogue = []struct {
	name  string
	price float64
	stock int
}{
	{name: "Notebook", price: 120, stock: 40},
	{name: "Water Bottle", price: 349.5, stock: 25},
	{name: "Desk Lamp", price: 1299, stock: 8},
	{name: "Backpack", price: 2450.75, stock: 12},
}

// StubConfig captures configuration needed to run the stand-in.
type StubConfig struct {
	ApplicationAddress string
	Database           storage.Config
	App                shopapp.Config
	AdminUsername      string
	AdminPassword      string
	SeedProducts       bool
}

// DatabaseOpener opens the shop database.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// StubApplication constructs and executes the shopstub command.
type StubApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	serve               func(ctx context.Context, server *http.Server, logger *zap.Logger) error
}

// NewStubApplication creates a StubApplication with default dependencies.
func NewStubApplication() *StubApplication {
	return &StubApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
		serve:               serveUntilDone,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *StubApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *StubApplication {
	application.databaseOpener = databaseOpener
	return application
}

// Command builds the Cobra command for the stand-in.
func (application *StubApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:          commandUseName,
		Short:        commandShortDescription,
		Long:         commandLongDescription,
		SilenceUsage: true,
		RunE:         application.runCommand,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	return rootCommand, nil
}

func (application *StubApplication) configureCommand(command *cobra.Command) error {
	loader := application.configurationLoader
	loader.SetDefault(environmentKeyApplicationAddress, defaultApplicationAddress)
	loader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriver)
	loader.SetDefault(environmentKeyDatabaseDataSource, defaultDatabaseDataSourceName)
	loader.SetDefault(environmentKeyShopBasePath, shopapp.DefaultShopBasePath)
	loader.SetDefault(environmentKeyTodoBasePath, shopapp.DefaultTodoBasePath)
	loader.SetDefault(environmentKeyAdminUsername, storage.DefaultAdminUsername)
	loader.SetDefault(environmentKeyAdminPassword, storage.DefaultAdminPassword)
	loader.SetDefault(environmentKeySessionKey, "")
	loader.SetDefault(environmentKeySeedProducts, defaultSeedProducts)
	loader.AutomaticEnv()

	commandFlags := command.Flags()
	commandFlags.String(flagNameApplicationAddress, defaultApplicationAddress, flagUsageApplicationAddress)
	commandFlags.String(flagNameDatabaseDriver, defaultDatabaseDriver, flagUsageDatabaseDriver)
	commandFlags.String(flagNameDatabaseDataSourceName, defaultDatabaseDataSourceName, flagUsageDatabaseDataSourceName)
	commandFlags.String(flagNameShopBasePath, shopapp.DefaultShopBasePath, flagUsageShopBasePath)
	commandFlags.String(flagNameTodoBasePath, shopapp.DefaultTodoBasePath, flagUsageTodoBasePath)
	commandFlags.String(flagNameAdminUsername, storage.DefaultAdminUsername, flagUsageAdminUsername)
	commandFlags.String(flagNameAdminPassword, storage.DefaultAdminPassword, flagUsageAdminPassword)
	commandFlags.String(flagNameSessionKey, "", flagUsageSessionKey)
	commandFlags.Bool(flagNameSeedProducts, defaultSeedProducts, flagUsageSeedProducts)

	for _, key := range configurationKeys {
		if bindErr := application.bindFlag(commandFlags, key.environmentKey, key.flagName); bindErr != nil {
			return bindErr
		}
	}

	for _, key := range configurationKeys {
		if environmentErr := application.applyEnvironmentConfiguration(commandFlags, key.environmentKey, key.flagName); environmentErr != nil {
			return environmentErr
		}
	}

	return nil
}

func (application *StubApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *StubApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

func (application *StubApplication) stubConfig() StubConfig {
	loader := application.configurationLoader
	var sessionKey []byte
	if trimmedKey := strings.TrimSpace(loader.GetString(environmentKeySessionKey)); trimmedKey != "" {
		sessionKey = []byte(trimmedKey)
	}
	return StubConfig{
		ApplicationAddress: strings.TrimSpace(loader.GetString(environmentKeyApplicationAddress)),
		Database: storage.Config{
			DriverName:     strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
			DataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDataSource)),
		},
		App: shopapp.Config{
			ShopBasePath: loader.GetString(environmentKeyShopBasePath),
			TodoBasePath: loader.GetString(environmentKeyTodoBasePath),
			SessionKey:   sessionKey,
		},
		AdminUsername: strings.TrimSpace(loader.GetString(environmentKeyAdminUsername)),
		AdminPassword: loader.GetString(environmentKeyAdminPassword),
		SeedProducts:  loader.GetBool(environmentKeySeedProducts),
	}
}

func (application *StubApplication) runCommand(command *cobra.Command, arguments []string) error {
	if len(arguments) > 0 {
		return fmt.Errorf("%s: %s", unexpectedArgumentsMessage, strings.Join(arguments, " "))
	}

	stubConfig := application.stubConfig()
	if validationErr := application.ensureRequiredConfiguration(stubConfig); validationErr != nil {
		return validationErr
	}

	logger, loggerErr := zap.NewProduction()
	if loggerErr != nil {
		return fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}
	defer func() {
		_ = logger.Sync()
	}()

	app, buildErr := application.buildApp(stubConfig, logger)
	if buildErr != nil {
		return buildErr
	}

	httpServer := &http.Server{
		Addr:              stubConfig.ApplicationAddress,
		Handler:           app.Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	ctx, cancel := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	logger.Info(logEventListening,
		zap.String(logFieldAddress, stubConfig.ApplicationAddress),
		zap.String(logFieldShopPath, app.ShopBasePath()),
		zap.String(logFieldTodoPath, app.TodoBasePath()))
	if serveErr := application.serve(ctx, httpServer, logger); serveErr != nil {
		logger.Error(loggerContextServer, zap.Error(serveErr))
		return serveErr
	}
	return nil
}

// buildApp opens and prepares the database, then builds the stand-in over it.
func (application *StubApplication) buildApp(stubConfig StubConfig, logger *zap.Logger) (*shopapp.App, error) {
	database, databaseErr := application.databaseOpener(stubConfig.Database)
	if databaseErr != nil {
		logger.Error(loggerContextOpenDatabase, zap.Error(databaseErr))
		return nil, databaseErr
	}

	if migrateErr := storage.AutoMigrate(database); migrateErr != nil {
		logger.Error(loggerContextAutoMigrate, zap.Error(migrateErr))
		return nil, migrateErr
	}

	if seedErr := seedDatabase(database, stubConfig); seedErr != nil {
		logger.Error(loggerContextSeed, zap.Error(seedErr))
		return nil, seedErr
	}

	return shopapp.New(database, stubConfig.App, logger)
}

func seedDatabase(database *gorm.DB, stubConfig StubConfig) error {
	if adminErr := storage.EnsureAdmin(database, stubConfig.AdminUsername, stubConfig.AdminPassword); adminErr != nil {
		return adminErr
	}
	if !stubConfig.SeedProducts {
		return nil
	}
	products := make([]model.Product, 0, len(demoCatalogue))
	for _, entry := range demoCatalogue {
		product, productErr := model.NewProduct(entry.name, entry.price, entry.stock)
		if productErr != nil {
			return productErr
		}
		products = append(products, product)
	}
	return storage.EnsureProducts(database, products)
}

func serveUntilDone(ctx context.Context, server *http.Server, logger *zap.Logger) error {
	serveErrors := make(chan error, 1)
	go func() {
		serveErrors <- server.ListenAndServe()
	}()

	select {
	case serveErr := <-serveErrors:
		if errors.Is(serveErr, http.ErrServerClosed) {
			return nil
		}
		return serveErr
	case <-ctx.Done():
	}

	logger.Info(logEventShutdown)
	shutdownContext, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownContext)
}

func (application *StubApplication) ensureRequiredConfiguration(configuration StubConfig) error {
	var missingParameters []string

	if configuration.ApplicationAddress == "" {
		missingParameters = append(missingParameters, flagNameApplicationAddress)
	}

	if configuration.Database.DataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDataSourceName)
	}

	if configuration.AdminUsername == "" {
		missingParameters = append(missingParameters, flagNameAdminUsername)
	}

	if configuration.AdminPassword == "" {
		missingParameters = append(missingParameters, flagNameAdminPassword)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

func main() {
	application := NewStubApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
