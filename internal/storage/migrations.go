package storage

import (
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
)

const (
	// DefaultAdminUsername and DefaultAdminPassword are the administrator the shop ships with.
	DefaultAdminUsername = "admin"
	DefaultAdminPassword = "admin123"
)

// EnsureAdmin inserts an administrator named username unless one already exists.
// Existing rows keep their password.
func EnsureAdmin(database *gorm.DB, username string, password string) error {
	trimmedUsername := strings.TrimSpace(username)
	if trimmedUsername == "" {
		return errors.New("storage: admin username is empty")
	}
	if password == "" {
		return errors.New("storage: admin password is empty")
	}

	admin := model.User{
		Username: trimmedUsername,
		Password: model.PasswordDigest(password),
		Role:     model.RoleAdmin,
	}
	return database.Clauses(clause.OnConflict{DoNothing: true}).Create(&admin).Error
}

// EnsureProducts inserts every product whose name is not in the catalogue yet.
func EnsureProducts(database *gorm.DB, products []model.Product) error {
	if len(products) == 0 {
		return nil
	}
	return database.Clauses(clause.OnConflict{DoNothing: true}).Create(&products).Error
}
