package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	commandUseName                = "shopcheck"
	commandShortDescription       = "Verify the Mini Shop through a real browser"
	commandLongDescription        = "Drive the Mini Shop and todo pages in a browser and check what they show against the shop database"
	missingConfigurationMessage   = "missing required configuration"
	loggerCreationErrorMessage    = "logger"
	configurationFileErrorMessage = "read configuration file"
	commandInitializationFailure  = "failed to configure command"
	flagNotDefinedMessage         = "flag %s not defined"
	environmentConfigurationError = "failed to apply environment configuration"
	invalidBrowserFlagMessage     = "invalid browser flag"

	flagNameConfigFile     = "config"
	flagNameVerbose        = "verbose"
	flagNameBaseURL        = "base-url"
	flagNameTodoBaseURL    = "todo-base-url"
	flagNameDatabaseDriver = "db-driver"
	flagNameDatabaseDSN    = "db-dsn"
	flagNameHeadless       = "headless"
	flagNameWindowWidth    = "window-width"
	flagNameWindowHeight   = "window-height"
	flagNameChromePath     = "chrome-path"
	flagNameBrowserFlag    = "browser-flag"
	flagNameStartupTimeout = "startup-timeout"
	flagNameWaitTimeout    = "wait-timeout"
	flagNamePollInterval   = "poll-interval"
	flagNameWorkers        = "workers"
	flagNameDiagnosticsDir = "diagnostics-dir"

	environmentKeyBaseURL        = "BASE_URL"
	environmentKeyTodoBaseURL    = "TODO_BASE_URL"
	environmentKeyDatabaseDriver = "DB_DRIVER"
	environmentKeyDatabaseDSN    = "DB_DSN"
	environmentKeyHeadless       = "HEADLESS"
	environmentKeyWindowWidth    = "WINDOW_WIDTH"
	environmentKeyWindowHeight   = "WINDOW_HEIGHT"
	environmentKeyChromePath     = "CHROME_PATH"
	environmentKeyBrowserFlags   = "BROWSER_FLAGS"
	environmentKeyStartupTimeout = "STARTUP_TIMEOUT"
	environmentKeyWaitTimeout    = "WAIT_TIMEOUT"
	environmentKeyPollInterval   = "POLL_INTERVAL"
	environmentKeyWorkers        = "WORKERS"
	environmentKeyDiagnosticsDir = "DIAGNOSTICS_DIR"

	defaultBaseURL        = "http://localhost/minishop"
	defaultTodoBaseURL    = "http://localhost/todo-app/public"
	defaultDatabaseDriver = storage.DriverNameMySQL
	defaultHeadless       = true
	defaultWindowWidth    = 1280
	defaultWindowHeight   = 800
	defaultStartupTimeout = 20 * time.Second
	defaultWaitTimeout    = 10 * time.Second
	defaultPollInterval   = 250 * time.Millisecond
	defaultWorkers        = 1
	defaultDiagnosticsDir = "shopcheck-diagnostics"

	flagUsageConfigFile     = "YAML file holding any of the configuration keys"
	flagUsageVerbose        = "log at debug level in development format"
	flagUsageBaseURL        = "base URL of the Mini Shop"
	flagUsageTodoBaseURL    = "base URL of the todo application"
	flagUsageDatabaseDriver = "database driver (mysql or sqlite)"
	flagUsageDatabaseDSN    = "data source name of the shop database"
	flagUsageHeadless       = "run the browser without a window"
	flagUsageWindowWidth    = "browser window width in pixels"
	flagUsageWindowHeight   = "browser window height in pixels"
	flagUsageChromePath     = "browser executable; located automatically when empty"
	flagUsageBrowserFlag    = "extra browser command-line flag as name[=value], repeatable"
	flagUsageStartupTimeout = "bound on starting the browser"
	flagUsageWaitTimeout    = "default bound on every wait"
	flagUsagePollInterval   = "interval between condition evaluations"
	flagUsageWorkers        = "cases run concurrently, each in its own browser"
	flagUsageDiagnosticsDir = "directory receiving page dumps and screenshots of failed cases"

	logEventRunStarted  = "run_started"
	logEventRunFinished = "run_finished"
	logFieldCases       = "cases"
	logFieldWorkers     = "workers"
	logFieldPassed      = "passed"
	logFieldFailed      = "failed"
	logFieldSkipped     = "skipped"
	logFieldPass        = "pass"
)

// configurationKey pairs a flag with the environment variable that can set it.
type configurationKey struct {
	environmentKey string
	flagName       string
}

var configurationKeys = []configurationKey{
	{environmentKey: environmentKeyBaseURL, flagName: flagNameBaseURL},
	{environmentKey: environmentKeyTodoBaseURL, flagName: flagNameTodoBaseURL},
	{environmentKey: environmentKeyDatabaseDriver, flagName: flagNameDatabaseDriver},
	{environmentKey: environmentKeyDatabaseDSN, flagName: flagNameDatabaseDSN},
	{environmentKey: environmentKeyHeadless, flagName: flagNameHeadless},
	{environmentKey: environmentKeyWindowWidth, flagName: flagNameWindowWidth},
	{environmentKey: environmentKeyWindowHeight, flagName: flagNameWindowHeight},
	{environmentKey: environmentKeyChromePath, flagName: flagNameChromePath},
	{environmentKey: environmentKeyBrowserFlags, flagName: flagNameBrowserFlag},
	{environmentKey: environmentKeyStartupTimeout, flagName: flagNameStartupTimeout},
	{environmentKey: environmentKeyWaitTimeout, flagName: flagNameWaitTimeout},
	{environmentKey: environmentKeyPollInterval, flagName: flagNamePollInterval},
	{environmentKey: environmentKeyWorkers, flagName: flagNameWorkers},
	{environmentKey: environmentKeyDiagnosticsDir, flagName: flagNameDiagnosticsDir},
}

// CheckConfig captures everything a run needs.
type CheckConfig struct {
	Targets        harness.Targets
	Database       storage.Config
	SessionOptions session.Options
	WaitOptions    wait.Options
	Workers        int
	DiagnosticsDir string
}

// DatabaseOpener opens the shop database.
type DatabaseOpener func(storage.Config) (*gorm.DB, error)

// CheckApplication constructs and executes the shopcheck commands.
type CheckApplication struct {
	configurationLoader *viper.Viper
	databaseOpener      DatabaseOpener
	allocatorFactory    func(*zap.Logger) session.Allocator
	loggerFactory       func(verbose bool) (*zap.Logger, error)
}

// NewCheckApplication creates a CheckApplication with default dependencies.
func NewCheckApplication() *CheckApplication {
	return &CheckApplication{
		configurationLoader: viper.New(),
		databaseOpener:      storage.OpenDatabase,
		allocatorFactory: func(logger *zap.Logger) session.Allocator {
			return session.NewChromeAllocator(logger)
		},
		loggerFactory: newLogger,
	}
}

// WithDatabaseOpener overrides the database opener dependency.
func (application *CheckApplication) WithDatabaseOpener(databaseOpener DatabaseOpener) *CheckApplication {
	application.databaseOpener = databaseOpener
	return application
}

// WithAllocator overrides the browser allocator.
func (application *CheckApplication) WithAllocator(allocator session.Allocator) *CheckApplication {
	application.allocatorFactory = func(*zap.Logger) session.Allocator {
		return allocator
	}
	return application
}

// WithLogger makes every command log to logger.
func (application *CheckApplication) WithLogger(logger *zap.Logger) *CheckApplication {
	application.loggerFactory = func(bool) (*zap.Logger, error) {
		return logger, nil
	}
	return application
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Command builds the root command with its run, list and monitor subcommands.
func (application *CheckApplication) Command() (*cobra.Command, error) {
	rootCommand := &cobra.Command{
		Use:               commandUseName,
		Short:             commandShortDescription,
		Long:              commandLongDescription,
		SilenceUsage:      true,
		PersistentPreRunE: application.loadConfigurationFile,
	}

	if configurationErr := application.configureCommand(rootCommand); configurationErr != nil {
		return nil, configurationErr
	}

	rootCommand.AddCommand(application.listCommand(), application.runCommand(), application.monitorCommand())

	return rootCommand, nil
}

func (application *CheckApplication) configureCommand(command *cobra.Command) error {
	loader := application.configurationLoader
	loader.SetDefault(environmentKeyBaseURL, defaultBaseURL)
	loader.SetDefault(environmentKeyTodoBaseURL, defaultTodoBaseURL)
	loader.SetDefault(environmentKeyDatabaseDriver, defaultDatabaseDriver)
	loader.SetDefault(environmentKeyDatabaseDSN, "")
	loader.SetDefault(environmentKeyHeadless, defaultHeadless)
	loader.SetDefault(environmentKeyWindowWidth, defaultWindowWidth)
	loader.SetDefault(environmentKeyWindowHeight, defaultWindowHeight)
	loader.SetDefault(environmentKeyStartupTimeout, defaultStartupTimeout)
	loader.SetDefault(environmentKeyWaitTimeout, defaultWaitTimeout)
	loader.SetDefault(environmentKeyPollInterval, defaultPollInterval)
	loader.SetDefault(environmentKeyWorkers, defaultWorkers)
	loader.SetDefault(environmentKeyDiagnosticsDir, defaultDiagnosticsDir)
	loader.AutomaticEnv()

	commandFlags := command.PersistentFlags()
	commandFlags.String(flagNameConfigFile, "", flagUsageConfigFile)
	commandFlags.Bool(flagNameVerbose, false, flagUsageVerbose)
	commandFlags.String(flagNameBaseURL, defaultBaseURL, flagUsageBaseURL)
	commandFlags.String(flagNameTodoBaseURL, defaultTodoBaseURL, flagUsageTodoBaseURL)
	commandFlags.String(flagNameDatabaseDriver, defaultDatabaseDriver, flagUsageDatabaseDriver)
	commandFlags.String(flagNameDatabaseDSN, "", flagUsageDatabaseDSN)
	commandFlags.Bool(flagNameHeadless, defaultHeadless, flagUsageHeadless)
	commandFlags.Int(flagNameWindowWidth, defaultWindowWidth, flagUsageWindowWidth)
	commandFlags.Int(flagNameWindowHeight, defaultWindowHeight, flagUsageWindowHeight)
	commandFlags.String(flagNameChromePath, "", flagUsageChromePath)
	commandFlags.StringSlice(flagNameBrowserFlag, nil, flagUsageBrowserFlag)
	commandFlags.Duration(flagNameStartupTimeout, defaultStartupTimeout, flagUsageStartupTimeout)
	commandFlags.Duration(flagNameWaitTimeout, defaultWaitTimeout, flagUsageWaitTimeout)
	commandFlags.Duration(flagNamePollInterval, defaultPollInterval, flagUsagePollInterval)
	commandFlags.Int(flagNameWorkers, defaultWorkers, flagUsageWorkers)
	commandFlags.String(flagNameDiagnosticsDir, defaultDiagnosticsDir, flagUsageDiagnosticsDir)

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

func (application *CheckApplication) bindFlag(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	flag := flagSet.Lookup(flagName)
	if flag == nil {
		return fmt.Errorf(flagNotDefinedMessage, flagName)
	}

	if bindErr := application.configurationLoader.BindPFlag(environmentKey, flag); bindErr != nil {
		return bindErr
	}

	return nil
}

func (application *CheckApplication) applyEnvironmentConfiguration(flagSet *pflag.FlagSet, environmentKey string, flagName string) error {
	environmentValue, environmentFound := os.LookupEnv(environmentKey)
	if !environmentFound {
		return nil
	}

	if setErr := flagSet.Set(flagName, environmentValue); setErr != nil {
		return fmt.Errorf("%s: %w", environmentConfigurationError, setErr)
	}

	return nil
}

// loadConfigurationFile merges the --config file underneath flags and environment.
func (application *CheckApplication) loadConfigurationFile(command *cobra.Command, _ []string) error {
	configurationPath, _ := command.Flags().GetString(flagNameConfigFile)
	configurationPath = strings.TrimSpace(configurationPath)
	if configurationPath == "" {
		return nil
	}
	application.configurationLoader.SetConfigFile(configurationPath)
	if readErr := application.configurationLoader.ReadInConfig(); readErr != nil {
		return fmt.Errorf("%s: %w", configurationFileErrorMessage, readErr)
	}
	return nil
}

func (application *CheckApplication) checkConfig() (CheckConfig, error) {
	loader := application.configurationLoader
	browserFlags, flagsErr := parseBrowserFlags(loader.GetStringSlice(environmentKeyBrowserFlags))
	if flagsErr != nil {
		return CheckConfig{}, flagsErr
	}
	return CheckConfig{
		Targets: harness.Targets{
			BaseURL:     strings.TrimSpace(loader.GetString(environmentKeyBaseURL)),
			TodoBaseURL: strings.TrimSpace(loader.GetString(environmentKeyTodoBaseURL)),
		},
		Database: storage.Config{
			DriverName:     strings.TrimSpace(loader.GetString(environmentKeyDatabaseDriver)),
			DataSourceName: strings.TrimSpace(loader.GetString(environmentKeyDatabaseDSN)),
		},
		SessionOptions: session.Options{
			WindowWidth:    loader.GetInt(environmentKeyWindowWidth),
			WindowHeight:   loader.GetInt(environmentKeyWindowHeight),
			Headless:       loader.GetBool(environmentKeyHeadless),
			ExecPath:       strings.TrimSpace(loader.GetString(environmentKeyChromePath)),
			Flags:          browserFlags,
			StartupTimeout: loader.GetDuration(environmentKeyStartupTimeout),
		},
		WaitOptions: wait.Options{
			Timeout:      loader.GetDuration(environmentKeyWaitTimeout),
			PollInterval: loader.GetDuration(environmentKeyPollInterval),
		},
		Workers:        loader.GetInt(environmentKeyWorkers),
		DiagnosticsDir: strings.TrimSpace(loader.GetString(environmentKeyDiagnosticsDir)),
	}, nil
}

func (application *CheckApplication) ensureRequiredConfiguration(configuration CheckConfig) error {
	var missingParameters []string

	if configuration.Targets.BaseURL == "" {
		missingParameters = append(missingParameters, flagNameBaseURL)
	}

	if configuration.Database.DriverName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDriver)
	}

	if configuration.Database.DataSourceName == "" {
		missingParameters = append(missingParameters, flagNameDatabaseDSN)
	}

	if len(missingParameters) == 0 {
		return nil
	}

	return fmt.Errorf("%s: %s", missingConfigurationMessage, strings.Join(missingParameters, ", "))
}

// parseBrowserFlags turns name[=value] entries into chromedp flags. A bare name or the
// values true/false become booleans; anything else stays a string.
func parseBrowserFlags(entries []string) (map[string]any, error) {
	if len(entries) == 0 {
		return nil, nil
	}
	flags := make(map[string]any, len(entries))
	for _, entry := range entries {
		name, value, hasValue := strings.Cut(strings.TrimSpace(entry), "=")
		name = strings.TrimLeft(strings.TrimSpace(name), "-")
		if name == "" {
			return nil, fmt.Errorf("%s: %q", invalidBrowserFlagMessage, entry)
		}
		if !hasValue {
			flags[name] = true
			continue
		}
		if booleanValue, parseErr := strconv.ParseBool(strings.TrimSpace(value)); parseErr == nil {
			flags[name] = booleanValue
			continue
		}
		flags[name] = value
	}
	return flags, nil
}

// checkEnvironment is the wiring shared by run and monitor.
type checkEnvironment struct {
	config CheckConfig
	logger *zap.Logger
	runner *harness.Runner
	close  func()
}

func (application *CheckApplication) prepare(command *cobra.Command) (*checkEnvironment, error) {
	configuration, configurationErr := application.checkConfig()
	if configurationErr != nil {
		return nil, configurationErr
	}
	if validationErr := application.ensureRequiredConfiguration(configuration); validationErr != nil {
		return nil, validationErr
	}

	verbose, _ := command.Flags().GetBool(flagNameVerbose)
	logger, loggerErr := application.loggerFactory(verbose)
	if loggerErr != nil {
		return nil, fmt.Errorf("%s: %w", loggerCreationErrorMessage, loggerErr)
	}

	database, databaseErr := application.databaseOpener(configuration.Database)
	if databaseErr != nil {
		_ = logger.Sync()
		return nil, databaseErr
	}

	store := shopdata.NewStore(storage.NewReader(database, logger))
	controller := session.NewController(application.allocatorFactory(logger), logger)
	runner := harness.NewRunner(controller, store, harness.Config{
		Targets:        configuration.Targets,
		SessionOptions: configuration.SessionOptions,
		WaitOptions:    configuration.WaitOptions,
		Workers:        configuration.Workers,
		DiagnosticsDir: configuration.DiagnosticsDir,
	}, logger)

	return &checkEnvironment{
		config: configuration,
		logger: logger,
		runner: runner,
		close: func() {
			if sqlDatabase, handleErr := database.DB(); handleErr == nil {
				_ = sqlDatabase.Close()
			}
			_ = logger.Sync()
		},
	}, nil
}

func interruptibleContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func main() {
	application := NewCheckApplication()
	rootCommand, commandErr := application.Command()
	if commandErr != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", commandInitializationFailure, commandErr)
		os.Exit(1)
	}

	if executeErr := rootCommand.Execute(); executeErr != nil {
		os.Exit(1)
	}
}
