package shopapp

import (
	"errors"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	messageInvalidLogin     = "Invalid username or password."
	messageFieldsRequired   = "All fields are required."
	messagePasswordMismatch = "Passwords do not match."
	messageUsernameTaken    = "Username already taken."
)

type loginPage struct {
	Error string
}

type signupPage struct {
	Error   string
	Success bool
}

func (app *App) renderLogin(context *gin.Context) {
	app.render(context, http.StatusOK, templateLogin, loginPage{})
}

func (app *App) submitLogin(context *gin.Context) {
	username := strings.TrimSpace(context.PostForm("username"))
	password := context.PostForm("password")

	var user model.User
	lookupErr := app.database.WithContext(context.Request.Context()).
		Where("username = ? AND password = ?", username, model.PasswordDigest(password)).
		First(&user).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		app.render(context, http.StatusOK, templateLogin, loginPage{Error: messageInvalidLogin})
		return
	}
	if lookupErr != nil {
		app.fail(context, "login", lookupErr)
		return
	}

	app.signIn(context, currentUser{ID: int64(user.ID), Username: user.Username, Role: user.Role})
	context.Redirect(http.StatusFound, app.homeURL(user.Role))
}

func (app *App) homeURL(role string) string {
	if role == model.RoleAdmin {
		return app.shopURL(path.Join(adminSection, pageAdminHome))
	}
	return app.shopURL(path.Join(customerSection, pageCustomerHome))
}

func (app *App) renderSignup(context *gin.Context) {
	app.render(context, http.StatusOK, templateSignup, signupPage{})
}

func (app *App) submitSignup(context *gin.Context) {
	username := strings.TrimSpace(context.PostForm("username"))
	password := context.PostForm("password")
	confirmation := context.PostForm("confirm")

	switch {
	case username == "" || password == "":
		app.render(context, http.StatusOK, templateSignup, signupPage{Error: messageFieldsRequired})
		return
	case password != confirmation:
		app.render(context, http.StatusOK, templateSignup, signupPage{Error: messagePasswordMismatch})
		return
	}

	database := app.database.WithContext(context.Request.Context())
	var existing int64
	if countErr := database.Model(&model.User{}).Where("username = ?", username).Count(&existing).Error; countErr != nil {
		app.fail(context, "signup", countErr)
		return
	}
	if existing > 0 {
		app.render(context, http.StatusOK, templateSignup, signupPage{Error: messageUsernameTaken})
		return
	}

	user := model.User{Username: username, Password: model.PasswordDigest(password), Role: model.RoleCustomer}
	if createErr := database.Create(&user).Error; createErr != nil {
		app.fail(context, "signup", createErr)
		return
	}
	app.render(context, http.StatusOK, templateSignup, signupPage{Success: true})
}

func (app *App) logout(context *gin.Context) {
	app.signOut(context)
	context.Redirect(http.StatusFound, app.shopURL(pageLogin))
}
