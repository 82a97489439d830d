package shopapp

import (
	"context"
	"errors"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	messagePurchased = "Products successfully bought!"
	messageCartEmpty = "Your cart is empty."

	cartLinesQuery = `SELECT cart.product_id AS product_id, products.name AS name, products.price AS price, cart.quantity AS quantity
		FROM cart JOIN products ON products.id = cart.product_id
		WHERE cart.user_id = ? AND cart.bought = ?
		ORDER BY cart.id`
)

type customerHomePage struct {
	Username string
	Search   string
	Products []model.Product
}

// cartLine is an unbought cart row joined with its product.
type cartLine struct {
	ProductID int64
	Name      string
	Price     float64
	Quantity  int64
}

func (line cartLine) Subtotal() float64 {
	return line.Price * float64(line.Quantity)
}

type cartPage struct {
	Lines   []cartLine
	Total   float64
	Message string
}

func (app *App) cartURL() string {
	return app.shopURL(path.Join(customerSection, pageCart))
}

func (app *App) renderCustomerHome(context *gin.Context) {
	user, _ := app.currentUser(context)
	search := strings.TrimSpace(context.Query("search"))

	query := app.database.WithContext(context.Request.Context()).Order("id")
	if search != "" {
		query = query.Where("name LIKE ?", "%"+search+"%")
	}
	var products []model.Product
	if findErr := query.Find(&products).Error; findErr != nil {
		app.fail(context, "list products", findErr)
		return
	}
	app.render(context, http.StatusOK, templateCustomerHome, customerHomePage{
		Username: user.Username,
		Search:   search,
		Products: products,
	})
}

func (app *App) addToCart(context *gin.Context) {
	user, _ := app.currentUser(context)
	productID, productErr := strconv.ParseUint(context.PostForm("product_id"), 10, 64)
	quantity, quantityErr := strconv.Atoi(context.PostForm("quantity"))
	if productErr != nil || quantityErr != nil || quantity < 1 {
		context.Redirect(http.StatusFound, app.homeURL(model.RoleCustomer))
		return
	}

	addErr := app.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		var product model.Product
		if lookupErr := transaction.First(&product, productID).Error; lookupErr != nil {
			return lookupErr
		}
		var item model.CartItem
		itemErr := transaction.
			Where("user_id = ? AND product_id = ? AND bought = ?", user.ID, product.ID, model.CartBoughtNo).
			First(&item).Error
		if errors.Is(itemErr, gorm.ErrRecordNotFound) {
			return transaction.Create(&model.CartItem{
				UserID:    uint(user.ID),
				ProductID: product.ID,
				Quantity:  quantity,
				Bought:    model.CartBoughtNo,
			}).Error
		}
		if itemErr != nil {
			return itemErr
		}
		return transaction.Model(&item).Update("quantity", item.Quantity+quantity).Error
	})
	if addErr != nil && !errors.Is(addErr, gorm.ErrRecordNotFound) {
		app.fail(context, "add to cart", addErr)
		return
	}
	context.Redirect(http.StatusFound, app.homeURL(model.RoleCustomer))
}

func (app *App) cartLines(ctx context.Context, userID int64) ([]cartLine, float64, error) {
	var lines []cartLine
	if scanErr := app.database.WithContext(ctx).Raw(cartLinesQuery, userID, model.CartBoughtNo).Scan(&lines).Error; scanErr != nil {
		return nil, 0, scanErr
	}
	total := 0.0
	for _, line := range lines {
		total += line.Subtotal()
	}
	return lines, total, nil
}

func (app *App) renderCart(context *gin.Context) {
	app.renderLines(context, templateCart)
}

func (app *App) renderPay(context *gin.Context) {
	app.renderLines(context, templatePay)
}

func (app *App) renderLines(context *gin.Context, templateName string) {
	user, _ := app.currentUser(context)
	lines, total, linesErr := app.cartLines(context.Request.Context(), user.ID)
	if linesErr != nil {
		app.fail(context, "cart lines", linesErr)
		return
	}
	app.render(context, http.StatusOK, templateName, cartPage{Lines: lines, Total: total})
}

// updateCart applies the quantities[<product id>] fields; zero or less removes the line.
func (app *App) updateCart(context *gin.Context) {
	user, _ := app.currentUser(context)
	quantities := context.PostFormMap("quantities")

	updateErr := app.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		for productField, quantityField := range quantities {
			productID, productErr := strconv.ParseInt(productField, 10, 64)
			quantity, quantityErr := strconv.Atoi(strings.TrimSpace(quantityField))
			if productErr != nil || quantityErr != nil {
				continue
			}
			line := transaction.Where("user_id = ? AND product_id = ? AND bought = ?", user.ID, productID, model.CartBoughtNo)
			if quantity <= 0 {
				if deleteErr := line.Delete(&model.CartItem{}).Error; deleteErr != nil {
					return deleteErr
				}
				continue
			}
			if saveErr := line.Model(&model.CartItem{}).Update("quantity", quantity).Error; saveErr != nil {
				return saveErr
			}
		}
		return nil
	})
	if updateErr != nil {
		app.fail(context, "update cart", updateErr)
		return
	}
	context.Redirect(http.StatusFound, app.cartURL())
}

// pay marks every open line bought and takes the quantities out of stock.
func (app *App) pay(context *gin.Context) {
	user, _ := app.currentUser(context)
	var purchased int

	payErr := app.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		var items []model.CartItem
		if findErr := transaction.Where("user_id = ? AND bought = ?", user.ID, model.CartBoughtNo).Find(&items).Error; findErr != nil {
			return findErr
		}
		for _, item := range items {
			stockErr := transaction.Model(&model.Product{}).
				Where("id = ?", item.ProductID).
				Update("stock", gorm.Expr("CASE WHEN stock >= ? THEN stock - ? ELSE 0 END", item.Quantity, item.Quantity)).Error
			if stockErr != nil {
				return stockErr
			}
		}
		purchased = len(items)
		return transaction.Model(&model.CartItem{}).
			Where("user_id = ? AND bought = ?", user.ID, model.CartBoughtNo).
			Update("bought", model.CartBoughtYes).Error
	})
	if payErr != nil {
		app.fail(context, "pay", payErr)
		return
	}

	message := messagePurchased
	if purchased == 0 {
		message = messageCartEmpty
	}
	app.render(context, http.StatusOK, templatePay, cartPage{Message: message})
}
