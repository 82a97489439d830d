// Package shopdata reads and seeds Mini Shop ground truth through parameterized statements.
package shopdata

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MarkoPoloResearchLab/shopcheck/internal/extract"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/model"
	"github.com/MarkoPoloResearchLab/shopcheck/internal/storage"
)

const (
	uniqueSuffixLength = 12

	errorMessageNoStock       = "shopdata: no products in stock to seed cart"
	errorMessageUnknownUser   = "shopdata: unknown user"
	errorMessagePriceColumn   = "shopdata: read price"
	errorMessageInvalidSeed   = "shopdata: seed quantity must be positive"
	errorMessageCreateUser    = "shopdata: create user"
	errorMessageCreateProduct = "shopdata: create product"
)

var (
	// ErrNoStock reports that no product has stock left to seed a cart with.
	ErrNoStock     = errors.New(errorMessageNoStock)
	ErrUnknownUser = errors.New(errorMessageUnknownUser)
)

const (
	statementInsertUser          = "INSERT INTO users (username, password, role) VALUES (?, ?, ?)"
	statementUserIDByName        = "SELECT id FROM users WHERE username = ?"
	statementDeleteUserCart      = "DELETE FROM cart WHERE user_id IN (SELECT id FROM users WHERE username = ?)"
	statementDeleteUser          = "DELETE FROM users WHERE username = ?"
	statementInsertProduct       = "INSERT INTO products (name, price, stock) VALUES (?, ?, ?)"
	statementProductByName       = "SELECT id, name, price, stock FROM products WHERE name = ?"
	statementProductByID         = "SELECT id, name, price, stock FROM products WHERE id = ?"
	statementProductNamesLike    = "SELECT name FROM products WHERE name LIKE ? ORDER BY id"
	statementFirstInStock        = "SELECT id, name, price, stock FROM products WHERE stock > ? ORDER BY id LIMIT 1"
	statementDeleteProductCart   = "DELETE FROM cart WHERE product_id = ?"
	statementDeleteProduct       = "DELETE FROM products WHERE id = ?"
	statementDeleteProductByName = "DELETE FROM products WHERE name = ?"
	statementCartLines           = `SELECT c.product_id AS product_id, c.quantity AS quantity, p.name AS name, p.price AS price, p.stock AS stock
		FROM cart c
		JOIN products p ON c.product_id = p.id
		WHERE c.user_id = ? AND c.bought = ?
		ORDER BY c.id`
	statementCartQuantity  = "SELECT quantity FROM cart WHERE user_id = ? AND product_id = ? AND bought = ? ORDER BY id LIMIT 1"
	statementCountOpenCart = "SELECT COUNT(*) AS total FROM cart WHERE user_id = ? AND bought = ?"
	statementInsertCart    = "INSERT INTO cart (user_id, product_id, quantity, bought) VALUES (?, ?, ?, ?)"
	statementClearCart     = "DELETE FROM cart WHERE user_id = ? AND bought = ?"
	statementTaskByTitle   = "SELECT id, title, category, completed FROM tasks WHERE title = ? ORDER BY id LIMIT 1"
	statementDeleteTasks   = "DELETE FROM tasks WHERE title = ?"
)

// Product is a products row as the store holds it.
type Product struct {
	ID    int64
	Name  string
	Price extract.Amount
	Stock int64
}

// CartLine is one unbought cart row joined with its product.
type CartLine struct {
	ProductID int64
	Name      string
	Price     extract.Amount
	Quantity  int64
	Stock     int64
}

// Subtotal is price times quantity.
func (line CartLine) Subtotal() (extract.Amount, error) {
	return line.Price.Mul(line.Quantity)
}

// Task is a todo-app row.
type Task struct {
	ID        int64
	Title     string
	Category  string
	Completed bool
}

// Store is the authoritative view of Mini Shop state.
type Store struct {
	reader *storage.Reader
}

func NewStore(reader *storage.Reader) *Store {
	return &Store{reader: reader}
}

// Reader exposes the underlying statement reader for ad hoc queries.
func (store *Store) Reader() *storage.Reader {
	return store.reader
}

// UniqueName returns prefix followed by a random suffix, for fixture rows that must not
// collide across runs or concurrent workers.
func UniqueName(prefix string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:uniqueSuffixLength]
	return fmt.Sprintf("%s_%s", prefix, suffix)
}

// CreateUser inserts a user with the shop's MD5 password digest and returns its id.
func (store *Store) CreateUser(ctx context.Context, username string, password string, role string) (int64, error) {
	normalizedRole, roleErr := model.NormalizeRole(role)
	if roleErr != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageCreateUser, roleErr)
	}
	var userID int64
	transactionErr := store.reader.Transaction(ctx, func(transaction *storage.Reader) error {
		if _, insertErr := transaction.Execute(ctx, statementInsertUser, username, model.PasswordDigest(password), normalizedRole); insertErr != nil {
			return insertErr
		}
		row, queryErr := transaction.QueryOne(ctx, statementUserIDByName, username)
		if queryErr != nil {
			return queryErr
		}
		if row == nil {
			return fmt.Errorf("%w: %s", ErrUnknownUser, username)
		}
		var idErr error
		userID, idErr = row.Int64("id")
		return idErr
	})
	if transactionErr != nil {
		return 0, fmt.Errorf("%s %s: %w", errorMessageCreateUser, username, transactionErr)
	}
	return userID, nil
}

// UserID returns the id of username, or false when no such user exists.
func (store *Store) UserID(ctx context.Context, username string) (int64, bool, error) {
	row, queryErr := store.reader.QueryOne(ctx, statementUserIDByName, username)
	if queryErr != nil || row == nil {
		return 0, false, queryErr
	}
	userID, idErr := row.Int64("id")
	if idErr != nil {
		return 0, false, idErr
	}
	return userID, true, nil
}

// DeleteUser removes username together with its cart rows. Deleting an absent user is a no-op.
func (store *Store) DeleteUser(ctx context.Context, username string) error {
	return store.reader.Transaction(ctx, func(transaction *storage.Reader) error {
		if _, cartErr := transaction.Execute(ctx, statementDeleteUserCart, username); cartErr != nil {
			return cartErr
		}
		_, userErr := transaction.Execute(ctx, statementDeleteUser, username)
		return userErr
	})
}

// CreateProduct inserts a product and returns its id.
func (store *Store) CreateProduct(ctx context.Context, name string, price float64, stock int) (int64, error) {
	product, validationErr := model.NewProduct(name, price, stock)
	if validationErr != nil {
		return 0, fmt.Errorf("%s: %w", errorMessageCreateProduct, validationErr)
	}
	var productID int64
	transactionErr := store.reader.Transaction(ctx, func(transaction *storage.Reader) error {
		if _, insertErr := transaction.Execute(ctx, statementInsertProduct, product.Name, product.Price, product.Stock); insertErr != nil {
			return insertErr
		}
		row, queryErr := transaction.QueryOne(ctx, statementProductByName, product.Name)
		if queryErr != nil {
			return queryErr
		}
		created, scanErr := productFromRow(row)
		productID = created.ID
		return scanErr
	})
	if transactionErr != nil {
		return 0, fmt.Errorf("%s %s: %w", errorMessageCreateProduct, name, transactionErr)
	}
	return productID, nil
}

func (store *Store) ProductByName(ctx context.Context, name string) (Product, bool, error) {
	return store.queryProduct(ctx, statementProductByName, name)
}

func (store *Store) ProductByID(ctx context.Context, productID int64) (Product, bool, error) {
	return store.queryProduct(ctx, statementProductByID, productID)
}

// FirstInStock returns the lowest-id product with stock left.
func (store *Store) FirstInStock(ctx context.Context) (Product, bool, error) {
	return store.queryProduct(ctx, statementFirstInStock, 0)
}

func (store *Store) queryProduct(ctx context.Context, statement string, parameter any) (Product, bool, error) {
	row, queryErr := store.reader.QueryOne(ctx, statement, parameter)
	if queryErr != nil || row == nil {
		return Product{}, false, queryErr
	}
	product, scanErr := productFromRow(row)
	if scanErr != nil {
		return Product{}, false, scanErr
	}
	return product, true, nil
}

// ProductNamesLike returns the names containing fragment, as the shop's search does.
func (store *Store) ProductNamesLike(ctx context.Context, fragment string) ([]string, error) {
	rows, queryErr := store.reader.Query(ctx, statementProductNamesLike, "%"+fragment+"%")
	if queryErr != nil {
		return nil, queryErr
	}
	names := make([]string, 0, len(rows))
	for _, row := range rows {
		name, nameErr := row.String("name")
		if nameErr != nil {
			return nil, nameErr
		}
		names = append(names, name)
	}
	return names, nil
}

// DeleteProduct removes a product and the cart rows referencing it.
func (store *Store) DeleteProduct(ctx context.Context, productID int64) error {
	return store.reader.Transaction(ctx, func(transaction *storage.Reader) error {
		if _, cartErr := transaction.Execute(ctx, statementDeleteProductCart, productID); cartErr != nil {
			return cartErr
		}
		_, productErr := transaction.Execute(ctx, statementDeleteProduct, productID)
		return productErr
	})
}

// DeleteProductByName removes a product created through the UI, whose id the test never saw.
func (store *Store) DeleteProductByName(ctx context.Context, name string) error {
	product, found, lookupErr := store.ProductByName(ctx, name)
	if lookupErr != nil {
		return lookupErr
	}
	if !found {
		_, deleteErr := store.reader.Execute(ctx, statementDeleteProductByName, name)
		return deleteErr
	}
	return store.DeleteProduct(ctx, product.ID)
}

// CartLines returns the user's unbought cart rows in insertion order.
func (store *Store) CartLines(ctx context.Context, userID int64) ([]CartLine, error) {
	rows, queryErr := store.reader.Query(ctx, statementCartLines, userID, model.CartBoughtNo)
	if queryErr != nil {
		return nil, queryErr
	}
	lines := make([]CartLine, 0, len(rows))
	for _, row := range rows {
		line, lineErr := cartLineFromRow(row)
		if lineErr != nil {
			return nil, lineErr
		}
		lines = append(lines, line)
	}
	return lines, nil
}

// CartQuantity returns the quantity of the user's unbought line for productID.
func (store *Store) CartQuantity(ctx context.Context, userID int64, productID int64) (int64, bool, error) {
	row, queryErr := store.reader.QueryOne(ctx, statementCartQuantity, userID, productID, model.CartBoughtNo)
	if queryErr != nil || row == nil {
		return 0, false, queryErr
	}
	quantity, quantityErr := row.Int64("quantity")
	if quantityErr != nil {
		return 0, false, quantityErr
	}
	return quantity, true, nil
}

// CartTotal sums price times quantity over the user's unbought lines.
func (store *Store) CartTotal(ctx context.Context, userID int64) (extract.Amount, error) {
	lines, linesErr := store.CartLines(ctx, userID)
	if linesErr != nil {
		return extract.Amount{}, linesErr
	}
	return SumLines(lines)
}

// SumLines totals cart lines.
func SumLines(lines []CartLine) (extract.Amount, error) {
	total := extract.AmountFromInt(0)
	for _, line := range lines {
		subtotal, subtotalErr := line.Subtotal()
		if subtotalErr != nil {
			return extract.Amount{}, subtotalErr
		}
		var addErr error
		if total, addErr = total.Add(subtotal); addErr != nil {
			return extract.Amount{}, addErr
		}
	}
	return total, nil
}

// SeedCartIfEmpty inserts one unbought line for productID unless the user already has
// unbought lines. The check and the insert share a transaction, so repeated calls leave
// exactly one seeded row. It reports whether a row was inserted.
func (store *Store) SeedCartIfEmpty(ctx context.Context, userID int64, productID int64, quantity int64) (bool, error) {
	if quantity <= 0 {
		return false, errors.New(errorMessageInvalidSeed)
	}
	seeded := false
	transactionErr := store.reader.Transaction(ctx, func(transaction *storage.Reader) error {
		row, countErr := transaction.QueryOne(ctx, statementCountOpenCart, userID, model.CartBoughtNo)
		if countErr != nil {
			return countErr
		}
		existing, existingErr := row.Int64("total")
		if existingErr != nil {
			return existingErr
		}
		if existing > 0 {
			return nil
		}
		if _, insertErr := transaction.Execute(ctx, statementInsertCart, userID, productID, quantity, model.CartBoughtNo); insertErr != nil {
			return insertErr
		}
		seeded = true
		return nil
	})
	if transactionErr != nil {
		return false, transactionErr
	}
	return seeded, nil
}

// SeedCartWithAnyInStock seeds an empty cart with one unit of the first in-stock product.
// ErrNoStock is returned when nothing is in stock; callers treat it as a skip.
func (store *Store) SeedCartWithAnyInStock(ctx context.Context, userID int64) (bool, error) {
	lines, linesErr := store.CartLines(ctx, userID)
	if linesErr != nil {
		return false, linesErr
	}
	if len(lines) > 0 {
		return false, nil
	}
	product, found, lookupErr := store.FirstInStock(ctx)
	if lookupErr != nil {
		return false, lookupErr
	}
	if !found {
		return false, ErrNoStock
	}
	return store.SeedCartIfEmpty(ctx, userID, product.ID, 1)
}

// ClearCart deletes the user's unbought lines.
func (store *Store) ClearCart(ctx context.Context, userID int64) (int64, error) {
	return store.reader.Execute(ctx, statementClearCart, userID, model.CartBoughtNo)
}

func (store *Store) TaskByTitle(ctx context.Context, title string) (Task, bool, error) {
	row, queryErr := store.reader.QueryOne(ctx, statementTaskByTitle, title)
	if queryErr != nil || row == nil {
		return Task{}, false, queryErr
	}
	task, scanErr := taskFromRow(row)
	if scanErr != nil {
		return Task{}, false, scanErr
	}
	return task, true, nil
}

func (store *Store) DeleteTasksByTitle(ctx context.Context, title string) (int64, error) {
	return store.reader.Execute(ctx, statementDeleteTasks, title)
}

func productFromRow(row storage.Row) (Product, error) {
	if row == nil {
		return Product{}, fmt.Errorf("%w: product row", storage.ErrMissingColumn)
	}
	productID, idErr := row.Int64("id")
	if idErr != nil {
		return Product{}, idErr
	}
	name, nameErr := row.String("name")
	if nameErr != nil {
		return Product{}, nameErr
	}
	price, priceErr := amountColumn(row, "price")
	if priceErr != nil {
		return Product{}, priceErr
	}
	stock, stockErr := row.Int64("stock")
	if stockErr != nil {
		return Product{}, stockErr
	}
	return Product{ID: productID, Name: name, Price: price, Stock: stock}, nil
}

func cartLineFromRow(row storage.Row) (CartLine, error) {
	productID, idErr := row.Int64("product_id")
	if idErr != nil {
		return CartLine{}, idErr
	}
	quantity, quantityErr := row.Int64("quantity")
	if quantityErr != nil {
		return CartLine{}, quantityErr
	}
	name, nameErr := row.String("name")
	if nameErr != nil {
		return CartLine{}, nameErr
	}
	price, priceErr := amountColumn(row, "price")
	if priceErr != nil {
		return CartLine{}, priceErr
	}
	stock, stockErr := row.Int64("stock")
	if stockErr != nil {
		return CartLine{}, stockErr
	}
	return CartLine{ProductID: productID, Name: name, Price: price, Quantity: quantity, Stock: stock}, nil
}

func taskFromRow(row storage.Row) (Task, error) {
	taskID, idErr := row.Int64("id")
	if idErr != nil {
		return Task{}, idErr
	}
	title, titleErr := row.String("title")
	if titleErr != nil {
		return Task{}, titleErr
	}
	category, categoryErr := row.String("category")
	if categoryErr != nil {
		return Task{}, categoryErr
	}
	completed, completedErr := row.Int64("completed")
	if completedErr != nil {
		booleanValue, isBoolean := row["completed"].(bool)
		if !isBoolean {
			return Task{}, completedErr
		}
		completed = 0
		if booleanValue {
			completed = 1
		}
	}
	return Task{ID: taskID, Title: title, Category: category, Completed: completed != 0}, nil
}

// amountColumn reads a decimal column exactly when the driver returns text (MySQL) and
// from its shortest float form otherwise (SQLite).
func amountColumn(row storage.Row, column string) (extract.Amount, error) {
	switch typed := row[column].(type) {
	case string:
		return extract.ParseAmount(typed)
	case []byte:
		return extract.ParseAmount(string(typed))
	case float64:
		return extract.AmountFromFloat(typed)
	case float32:
		return extract.AmountFromFloat(float64(typed))
	default:
		integer, integerErr := row.Int64(column)
		if integerErr != nil {
			return extract.Amount{}, fmt.Errorf("%s: %w", errorMessagePriceColumn, integerErr)
		}
		return extract.AmountFromInt(integer), nil
	}
}
