// Package shopapp serves a Go stand-in of the Mini Shop and todo applications. It keeps
// the paths, form fields, session cookie and markup of the PHP pages so the scenario
// catalogue can run against it locally.
package shopapp

import (
	"embed"
	"errors"
	"html/template"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	// DefaultShopBasePath and DefaultTodoBasePath mirror the XAMPP layout of the PHP apps.
	DefaultShopBasePath = "/minishop"
	DefaultTodoBasePath = "/todo-app/public"
	// SessionCookieName is the cookie PHP's session_start issues.
	SessionCookieName = "PHPSESSID"

	sessionKeyLength = 32

	errorMessageMissingDatabase     = "shopapp: missing database"
	errorMessageConflictingBasePath = "shopapp: shop and todo base paths must differ"
)

var (
	ErrMissingDatabase     = errors.New(errorMessageMissingDatabase)
	ErrConflictingBasePath = errors.New(errorMessageConflictingBasePath)
)

//go:embed templates/*.tmpl
var templateFiles embed.FS

//go:embed templates/style.css
var stylesheet []byte

// Config selects where the two applications are mounted. An empty SessionKey gets a
// random per-process key, which invalidates sessions on restart.
type Config struct {
	ShopBasePath string
	TodoBasePath string
	SessionKey   []byte
}

// App holds the shared state of the stand-in handlers.
type App struct {
	database     *gorm.DB
	logger       *zap.Logger
	sessionStore *sessions.CookieStore
	templates    *template.Template
	shopBasePath string
	todoBasePath string
}

// New builds the stand-in over a migrated Mini Shop schema.
func New(database *gorm.DB, config Config, logger *zap.Logger) (*App, error) {
	if database == nil {
		return nil, ErrMissingDatabase
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	shopBasePath := normalizeBasePath(config.ShopBasePath, DefaultShopBasePath)
	todoBasePath := normalizeBasePath(config.TodoBasePath, DefaultTodoBasePath)
	if shopBasePath == todoBasePath {
		return nil, ErrConflictingBasePath
	}

	sessionKey := config.SessionKey
	if len(sessionKey) == 0 {
		sessionKey = securecookie.GenerateRandomKey(sessionKeyLength)
	}
	sessionStore := sessions.NewCookieStore(sessionKey)
	sessionStore.Options = &sessions.Options{
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}

	app := &App{
		database:     database,
		logger:       logger,
		sessionStore: sessionStore,
		shopBasePath: shopBasePath,
		todoBasePath: todoBasePath,
	}
	compiledTemplates, parseErr := template.New("").Funcs(template.FuncMap{
		"stylesheet": func() string { return app.shopURL(stylesheetPath) },
		"rupees":     formatRupees,
		"amount":     formatAmount,
	}).ParseFS(templateFiles, "templates/*.tmpl")
	if parseErr != nil {
		return nil, parseErr
	}
	app.templates = compiledTemplates
	return app, nil
}

func normalizeBasePath(basePath string, fallback string) string {
	trimmed := strings.TrimSpace(basePath)
	if trimmed == "" {
		trimmed = fallback
	}
	return path.Clean("/" + strings.Trim(trimmed, "/"))
}

// ShopBasePath is the URL path the shop is mounted at.
func (app *App) ShopBasePath() string {
	return app.shopBasePath
}

// TodoBasePath is the URL path the todo application is mounted at.
func (app *App) TodoBasePath() string {
	return app.todoBasePath
}

func (app *App) shopURL(page string) string {
	return path.Join(app.shopBasePath, page)
}

func (app *App) todoURL(page string) string {
	return path.Join(app.todoBasePath, page)
}

// Router wires every page onto a fresh gin engine.
func (app *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), RequestLogger(app.logger), app.sessionMiddleware())
	app.registerShopRoutes(router.Group(app.shopBasePath))
	app.registerTodoRoutes(router.Group(app.todoBasePath))
	return router
}

func (app *App) registerShopRoutes(shop *gin.RouterGroup) {
	shop.GET("/", func(context *gin.Context) {
		context.Redirect(http.StatusFound, app.shopURL(pageLogin))
	})
	shop.GET(stylesheetPath, app.serveStylesheet)
	shop.GET(pageLogin, app.renderLogin)
	shop.POST(pageLogin, app.submitLogin)
	shop.GET(pageSignup, app.renderSignup)
	shop.POST(pageSignup, app.submitSignup)
	shop.GET(pageLogout, app.logout)

	customer := shop.Group(customerSection, app.requireRole(model.RoleCustomer))
	customer.GET(pageCustomerHome, app.renderCustomerHome)
	customer.POST(pageAddToCart, app.addToCart)
	customer.GET(pageCart, app.renderCart)
	customer.POST(pageCart, app.updateCart)
	customer.GET(pagePay, app.renderPay)
	customer.POST(pagePay, app.pay)

	admin := shop.Group(adminSection, app.requireRole(model.RoleAdmin))
	admin.GET(pageAdminHome, app.renderAdminHome)
	admin.GET(pageAddProduct, app.renderAddProduct)
	admin.POST(pageAddProduct, app.addProduct)
	admin.GET(pageDeleteProduct, app.renderDeleteProduct)
	admin.POST(pageDeleteProduct, app.deleteProduct)
	admin.GET(pageUpdateStock, app.renderUpdateStock)
	admin.POST(pageUpdateStock, app.updateStock)
}

func (app *App) registerTodoRoutes(todo *gin.RouterGroup) {
	todo.GET("/", func(context *gin.Context) {
		context.Redirect(http.StatusFound, app.todoURL(pageTodoIndex))
	})
	todo.GET(stylesheetPath, app.serveStylesheet)
	todo.GET(pageTodoIndex, app.renderTasks)
	todo.POST(pageTodoIndex, app.submitTasks)
	todo.GET(pageTodoDelete, app.deleteTask)
}

func (app *App) serveStylesheet(context *gin.Context) {
	context.Data(http.StatusOK, stylesheetContentType, stylesheet)
}
