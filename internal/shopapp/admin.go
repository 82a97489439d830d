package shopapp

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	messageInvalidProduct  = "Please enter a valid product name, price and stock."
	messageProductExists   = "Product already exists."
	messageProductNotFound = "Product not found."
	messageProductDeleted  = "Product deleted successfully."
	messageInvalidStock    = "Please enter a valid stock value."
	messageStockUpdated    = "Stock updated successfully."
)

type adminHomePage struct {
	Username string
	Products []model.Product
}

type updateStockPage struct {
	feedback
	Product *model.Product
}

func (app *App) renderAdminHome(context *gin.Context) {
	user, _ := app.currentUser(context)
	var products []model.Product
	if findErr := app.database.WithContext(context.Request.Context()).Order("id").Find(&products).Error; findErr != nil {
		app.fail(context, "list products", findErr)
		return
	}
	app.render(context, http.StatusOK, templateAdminHome, adminHomePage{Username: user.Username, Products: products})
}

func (app *App) renderAddProduct(context *gin.Context) {
	app.render(context, http.StatusOK, templateAddProduct, feedback{})
}

func (app *App) addProduct(context *gin.Context) {
	price, priceErr := strconv.ParseFloat(strings.TrimSpace(context.PostForm("price")), 64)
	stock, stockErr := strconv.Atoi(strings.TrimSpace(context.PostForm("stock")))
	if priceErr != nil || stockErr != nil {
		app.render(context, http.StatusOK, templateAddProduct, feedback{Error: messageInvalidProduct})
		return
	}
	product, productErr := model.NewProduct(context.PostForm("name"), price, stock)
	if productErr != nil {
		app.render(context, http.StatusOK, templateAddProduct, feedback{Error: messageInvalidProduct})
		return
	}

	database := app.database.WithContext(context.Request.Context())
	var existing int64
	if countErr := database.Model(&model.Product{}).Where("name = ?", product.Name).Count(&existing).Error; countErr != nil {
		app.fail(context, "add product", countErr)
		return
	}
	if existing > 0 {
		app.render(context, http.StatusOK, templateAddProduct, feedback{Error: messageProductExists})
		return
	}
	if createErr := database.Create(&product).Error; createErr != nil {
		app.fail(context, "add product", createErr)
		return
	}
	context.Redirect(http.StatusFound, app.homeURL(model.RoleAdmin))
}

func (app *App) renderDeleteProduct(context *gin.Context) {
	app.render(context, http.StatusOK, templateDeleteProduct, feedback{})
}

// deleteProduct removes the product and every cart row referencing it.
func (app *App) deleteProduct(context *gin.Context) {
	productID, parseErr := strconv.ParseUint(strings.TrimSpace(context.PostForm("product_id")), 10, 64)
	if parseErr != nil {
		app.render(context, http.StatusOK, templateDeleteProduct, feedback{Error: messageProductNotFound})
		return
	}

	var deleted int64
	deleteErr := app.database.WithContext(context.Request.Context()).Transaction(func(transaction *gorm.DB) error {
		if cartErr := transaction.Where("product_id = ?", productID).Delete(&model.CartItem{}).Error; cartErr != nil {
			return cartErr
		}
		result := transaction.Delete(&model.Product{}, productID)
		deleted = result.RowsAffected
		return result.Error
	})
	if deleteErr != nil {
		app.fail(context, "delete product", deleteErr)
		return
	}
	if deleted == 0 {
		app.render(context, http.StatusOK, templateDeleteProduct, feedback{Error: messageProductNotFound})
		return
	}
	app.render(context, http.StatusOK, templateDeleteProduct, feedback{Message: messageProductDeleted})
}

func (app *App) renderUpdateStock(context *gin.Context) {
	app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{})
}

// updateStock serves both steps of the form: looking a product up, then saving its new stock.
func (app *App) updateStock(context *gin.Context) {
	productID, parseErr := strconv.ParseUint(strings.TrimSpace(context.PostForm("product_id")), 10, 64)
	if parseErr != nil {
		app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{feedback: feedback{Error: messageProductNotFound}})
		return
	}
	database := app.database.WithContext(context.Request.Context())

	var product model.Product
	lookupErr := database.First(&product, productID).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{feedback: feedback{Error: messageProductNotFound}})
		return
	}
	if lookupErr != nil {
		app.fail(context, "update stock", lookupErr)
		return
	}

	newStockField, updating := context.GetPostForm("new_stock")
	if !updating {
		app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{Product: &product})
		return
	}
	newStock, stockErr := strconv.Atoi(strings.TrimSpace(newStockField))
	if stockErr != nil || newStock < 0 {
		app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{feedback: feedback{Error: messageInvalidStock}, Product: &product})
		return
	}
	if updateErr := database.Model(&product).Update("stock", newStock).Error; updateErr != nil {
		app.fail(context, "update stock", updateErr)
		return
	}
	app.render(context, http.StatusOK, templateUpdateStock, updateStockPage{feedback: feedback{Message: messageStockUpdated}})
}
