package shopapp_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/harness"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/scenarios"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/session"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopapp"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/shopdata"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/testutil"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/wait"
)

const (
	browserWaitTimeout  = 10 * time.Second
	browserPollInterval = 100 * time.Millisecond
	browserRunTimeout   = 10 * time.Minute
)

// TestScenarioCatalogueAgainstStandIn drives every scenario through a real headless
// browser against the stand-in shop.
func TestScenarioCatalogueAgainstStandIn(testingT *testing.T) {
	sessionOptions := testutil.RequireHeadlessBrowser(testingT)
	gin.SetMode(gin.TestMode)
	logger := zaptest.NewLogger(testingT)

	database := testutil.NewShopDatabase(testingT)
	app, appErr := shopapp.New(database, shopapp.Config{}, logger)
	require.NoError(testingT, appErr)
	server := httptest.NewServer(app.Router())
	testingT.Cleanup(server.Close)

	store := shopdata.NewStore(storage.NewReader(database, logger))
	controller := session.NewController(session.NewChromeAllocator(logger), logger)
	runner := harness.NewRunner(controller, store, harness.Config{
		Targets: harness.Targets{
			BaseURL:     server.URL + app.ShopBasePath(),
			TodoBaseURL: server.URL + app.TodoBasePath(),
		},
		SessionOptions: sessionOptions,
		WaitOptions:    wait.Options{Timeout: browserWaitTimeout, PollInterval: browserPollInterval},
		DiagnosticsDir: testingT.TempDir(),
	}, logger)

	ctx, cancel := context.WithTimeout(context.Background(), browserRunTimeout)
	defer cancel()
	for _, result := range runner.RunAll(ctx, scenarios.All()) {
		require.Equalf(testingT, harness.OutcomePassed, result.Outcome, "%s (%s): %v", result.Name, result.Kind, result.Err)
	}

	leftover, leftoverErr := store.ProductNamesLike(ctx, "")
	require.NoError(testingT, leftoverErr)
	require.Empty(testingT, leftover)
}
