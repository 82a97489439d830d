package model

import (
	"errors"
	"math"
	"strings"
)

const (
	productNameMaxLength = 255
	maximumProductPrice  = 99999999.99

	TaskCategoryDaily   = "daily"
	TaskCategoryWeekly  = "weekly"
	TaskCategoryMonthly = "monthly"
)

var (
	ErrInvalidProductName  = errors.New("invalid_product_name")
	ErrInvalidProductPrice = errors.New("invalid_product_price")
	ErrInvalidProductStock = errors.New("invalid_product_stock")
	ErrInvalidRole         = errors.New("invalid_role")
	ErrInvalidTaskTitle    = errors.New("invalid_task_title")
	ErrInvalidTaskCategory = errors.New("invalid_task_category")
)

// TaskCategories lists the todo-app tabs in display order.
var TaskCategories = []string{TaskCategoryDaily, TaskCategoryWeekly, TaskCategoryMonthly}

// NewProduct constructs a Product with a trimmed name and a price rounded to cents.
func NewProduct(name string, price float64, stock int) (Product, error) {
	trimmedName := strings.TrimSpace(name)
	if trimmedName == "" || len(trimmedName) > productNameMaxLength {
		return Product{}, ErrInvalidProductName
	}
	if math.IsNaN(price) || price < 0 || price > maximumProductPrice {
		return Product{}, ErrInvalidProductPrice
	}
	if stock < 0 {
		return Product{}, ErrInvalidProductStock
	}
	return Product{
		Name:  trimmedName,
		Price: math.Round(price*100) / 100,
		Stock: stock,
	}, nil
}

// NormalizeRole lowercases role and rejects anything but admin or customer.
func NormalizeRole(role string) (string, error) {
	normalized := strings.ToLower(strings.TrimSpace(role))
	switch normalized {
	case RoleAdmin, RoleCustomer:
		return normalized, nil
	case "":
		return RoleCustomer, nil
	default:
		return "", ErrInvalidRole
	}
}

// NewTask constructs an open Task in category.
func NewTask(title string, category string) (Task, error) {
	trimmedTitle := strings.TrimSpace(title)
	if trimmedTitle == "" {
		return Task{}, ErrInvalidTaskTitle
	}
	normalizedCategory := strings.ToLower(strings.TrimSpace(category))
	if !IsTaskCategory(normalizedCategory) {
		return Task{}, ErrInvalidTaskCategory
	}
	return Task{Title: trimmedTitle, Category: normalizedCategory}, nil
}

func IsTaskCategory(category string) bool {
	for _, known := range TaskCategories {
		if known == category {
			return true
		}
	}
	return false
}
