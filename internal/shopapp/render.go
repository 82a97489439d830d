package shopapp

import (
	"bytes"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	stylesheetPath        = "style.css"
	stylesheetContentType = "text/css; charset=utf-8"
	htmlContentType       = "text/html; charset=utf-8"
	currencySymbol        = "₹"

	customerSection   = "customer"
	adminSection      = "admin"
	pageLogin         = "index.php"
	pageSignup        = "signup.php"
	pageLogout        = "logout.php"
	pageCustomerHome  = "customer_home.php"
	pageAddToCart     = "add_to_cart.php"
	pageCart          = "cart.php"
	pagePay           = "pay.php"
	pageAdminHome     = "admin_home.php"
	pageAddProduct    = "add_product.php"
	pageDeleteProduct = "delete_product.php"
	pageUpdateStock   = "update_stock.php"
	pageTodoIndex     = "index.php"
	pageTodoDelete    = "delete.php"

	templateLogin         = "login"
	templateSignup        = "signup"
	templateCustomerHome  = "customer_home"
	templateCart          = "cart"
	templatePay           = "pay"
	templateAdminHome     = "admin_home"
	templateAddProduct    = "add_product"
	templateDeleteProduct = "delete_product"
	templateUpdateStock   = "update_stock"
	templateTodo          = "todo"

	logEventRenderTemplate = "render_template"
	logEventQueryFailed    = "query_failed"
	logFieldTemplate       = "template"
)

var currencyPrinter = message.NewPrinter(language.English)

// formatRupees renders value the way the shop prints prices: the rupee sign, thousands
// separators and two decimals.
func formatRupees(value float64) string {
	return currencySymbol + currencyPrinter.Sprintf("%.2f", value)
}

// formatAmount renders value with two decimals and no grouping, as the admin table does.
func formatAmount(value float64) string {
	return strconv.FormatFloat(value, 'f', 2, 64)
}

// feedback is the error or confirmation line a form page shows after a submission.
type feedback struct {
	Error   string
	Message string
}

func (app *App) render(context *gin.Context, status int, name string, data any) {
	var buffer bytes.Buffer
	if executeErr := app.templates.ExecuteTemplate(&buffer, name, data); executeErr != nil {
		app.logger.Error(logEventRenderTemplate, zap.String(logFieldTemplate, name), zap.Error(executeErr))
		context.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
		return
	}
	context.Data(status, htmlContentType, buffer.Bytes())
}

// fail logs a store failure and answers with a bare 500.
func (app *App) fail(context *gin.Context, operation string, err error) {
	app.logger.Error(logEventQueryFailed, zap.String("operation", operation), zap.Error(err))
	context.String(http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
}
