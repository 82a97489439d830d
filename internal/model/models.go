package model

import (
	"crypto/md5"
	"encoding/hex"
)

const (
	RoleAdmin    = "admin"
	RoleCustomer = "customer"

	// CartBoughtNo and CartBoughtYes are the two values of cart.bought.
	CartBoughtNo  = "no"
	CartBoughtYes = "yes"

	tableNameUsers    = "users"
	tableNameProducts = "products"
	tableNameCart     = "cart"
	tableNameTasks    = "tasks"
)

// User is a Mini Shop account. Password holds the hex MD5 digest the shop stores.
type User struct {
	ID       uint   `gorm:"primaryKey;autoIncrement"`
	Username string `gorm:"not null;size:100;uniqueIndex"`
	Password string `gorm:"not null;size:32"`
	Role     string `gorm:"not null;size:20;default:customer"`
}

func (User) TableName() string {
	return tableNameUsers
}

// Product is a catalogue entry. Price is a decimal(10,2) column in the shop schema.
type Product struct {
	ID    uint    `gorm:"primaryKey;autoIncrement"`
	Name  string  `gorm:"not null;size:255;uniqueIndex"`
	Price float64 `gorm:"not null;type:decimal(10,2)"`
	Stock int     `gorm:"not null;default:0"`
}

func (Product) TableName() string {
	return tableNameProducts
}

// CartItem is one cart line. Bought flips to "yes" when the customer pays.
type CartItem struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    uint   `gorm:"not null;index"`
	ProductID uint   `gorm:"not null;index"`
	Quantity  int    `gorm:"not null;default:1"`
	Bought    string `gorm:"not null;size:3;default:no"`
}

func (CartItem) TableName() string {
	return tableNameCart
}

// Task is a todo-app entry.
type Task struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	Title     string `gorm:"not null;size:255"`
	Category  string `gorm:"not null;size:16;index"`
	Completed bool   `gorm:"not null;default:false"`
}

func (Task) TableName() string {
	return tableNameTasks
}

// PasswordDigest returns the lowercase hex MD5 digest the shop compares passwords against.
func PasswordDigest(password string) string {
	sum := md5.Sum([]byte(password))
	return hex.EncodeToString(sum[:])
}
