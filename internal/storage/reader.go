package storage

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	OperationQuery       = "query"
	OperationExecute     = "execute"
	OperationScan        = "scan"
	OperationConnection  = "connection"
	OperationTransaction = "transaction"

	errorMessageStore             = "storage: store error"
	errorMessageParameterMismatch = "storage: placeholder and parameter counts differ"
	errorMessageMissingColumn     = "storage: missing column"
	errorMessageColumnType        = "storage: unexpected column type"
	errorMessageMissingDatabase   = "storage: missing database"

	logEventStatement     = "store_statement"
	logFieldOperation     = "operation"
	logFieldStatement     = "statement"
	logFieldDuration      = "duration"
	logFieldRowsAffected  = "rows"
	maximumLoggedSQLBytes = 200
)

var (
	// ErrStore is matched by every *OperationError. A store failure is fatal for the case
	// that hit it.
	ErrStore = errors.New(errorMessageStore)
	// ErrParameterMismatch reports a statement whose ? placeholders do not match its parameters.
	ErrParameterMismatch = errors.New(errorMessageParameterMismatch)
	ErrMissingColumn     = errors.New(errorMessageMissingColumn)
	ErrColumnType        = errors.New(errorMessageColumnType)
)

// OperationError reports a failed statement against the system of record.
type OperationError struct {
	Operation string
	Statement string
	Err       error
}

func (operationError *OperationError) Error() string {
	return fmt.Sprintf("%s: %s %q: %v", errorMessageStore, operationError.Operation, abbreviate(operationError.Statement), operationError.Err)
}

func (operationError *OperationError) Unwrap() []error {
	return []error{ErrStore, operationError.Err}
}

// Row is one result row keyed by column name.
type Row map[string]any

func (row Row) value(column string) (any, error) {
	value, found := row[column]
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, column)
	}
	return value, nil
}

// IsNull reports whether column holds SQL NULL. Missing columns are not null.
func (row Row) IsNull(column string) bool {
	value, found := row[column]
	return found && value == nil
}

func (row Row) String(column string) (string, error) {
	value, valueErr := row.value(column)
	if valueErr != nil {
		return "", valueErr
	}
	switch typed := value.(type) {
	case nil:
		return "", nil
	case string:
		return typed, nil
	case []byte:
		return string(typed), nil
	case time.Time:
		return typed.Format(time.RFC3339), nil
	default:
		return fmt.Sprint(typed), nil
	}
}

func (row Row) Int64(column string) (int64, error) {
	value, valueErr := row.value(column)
	if valueErr != nil {
		return 0, valueErr
	}
	switch typed := value.(type) {
	case int64:
		return typed, nil
	case int32:
		return int64(typed), nil
	case int:
		return int64(typed), nil
	case int16:
		return int64(typed), nil
	case int8:
		return int64(typed), nil
	case uint64:
		if typed > math.MaxInt64 {
			return 0, fmt.Errorf("%w: %s overflows int64", ErrColumnType, column)
		}
		return int64(typed), nil
	case uint32:
		return int64(typed), nil
	case uint:
		return int64(typed), nil
	case float64:
		if typed != math.Trunc(typed) {
			return 0, fmt.Errorf("%w: %s holds fractional %v", ErrColumnType, column, typed)
		}
		return int64(typed), nil
	case []byte:
		return parseInteger(column, string(typed))
	case string:
		return parseInteger(column, typed)
	default:
		return 0, fmt.Errorf("%w: %s is %T", ErrColumnType, column, value)
	}
}

func (row Row) Float64(column string) (float64, error) {
	value, valueErr := row.value(column)
	if valueErr != nil {
		return 0, valueErr
	}
	switch typed := value.(type) {
	case float64:
		return typed, nil
	case float32:
		return float64(typed), nil
	case []byte:
		return parseFloat(column, string(typed))
	case string:
		return parseFloat(column, typed)
	default:
		integer, integerErr := row.Int64(column)
		if integerErr != nil {
			return 0, integerErr
		}
		return float64(integer), nil
	}
}

func parseInteger(column string, text string) (int64, error) {
	parsed, parseErr := strconv.ParseInt(strings.TrimSpace(text), 10, 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrColumnType, column, parseErr)
	}
	return parsed, nil
}

func parseFloat(column string, text string) (float64, error) {
	parsed, parseErr := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if parseErr != nil {
		return 0, fmt.Errorf("%w: %s: %w", ErrColumnType, column, parseErr)
	}
	return parsed, nil
}

// Reader issues parameterized statements against the system of record. Values always
// travel as parameters; a statement whose ? count differs from its parameters is refused
// before it reaches the database.
type Reader struct {
	database *gorm.DB
	logger   *zap.Logger
}

func NewReader(database *gorm.DB, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{database: database, logger: logger}
}

// Query returns every row produced by statement in result order.
func (reader *Reader) Query(ctx context.Context, statement string, parameters ...any) ([]Row, error) {
	if prepareErr := reader.prepare(OperationQuery, statement, parameters); prepareErr != nil {
		return nil, prepareErr
	}
	startedAt := time.Now()
	var results []map[string]any
	if queryErr := reader.database.WithContext(ctx).Raw(statement, parameters...).Scan(&results).Error; queryErr != nil {
		return nil, &OperationError{Operation: OperationQuery, Statement: statement, Err: queryErr}
	}
	rows := make([]Row, 0, len(results))
	for _, result := range results {
		rows = append(rows, Row(result))
	}
	reader.logStatement(OperationQuery, statement, startedAt, int64(len(rows)))
	return rows, nil
}

// QueryOne returns the first row, or nil when there is none.
func (reader *Reader) QueryOne(ctx context.Context, statement string, parameters ...any) (Row, error) {
	rows, queryErr := reader.Query(ctx, statement, parameters...)
	if queryErr != nil {
		return nil, queryErr
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Execute runs a write and returns the affected-row count.
func (reader *Reader) Execute(ctx context.Context, statement string, parameters ...any) (int64, error) {
	if prepareErr := reader.prepare(OperationExecute, statement, parameters); prepareErr != nil {
		return 0, prepareErr
	}
	startedAt := time.Now()
	result := reader.database.WithContext(ctx).Exec(statement, parameters...)
	if result.Error != nil {
		return 0, &OperationError{Operation: OperationExecute, Statement: statement, Err: result.Error}
	}
	reader.logStatement(OperationExecute, statement, startedAt, result.RowsAffected)
	return result.RowsAffected, nil
}

// Scan decodes the rows of statement into destination, a pointer to a struct or slice.
func (reader *Reader) Scan(ctx context.Context, destination any, statement string, parameters ...any) error {
	if prepareErr := reader.prepare(OperationScan, statement, parameters); prepareErr != nil {
		return prepareErr
	}
	startedAt := time.Now()
	result := reader.database.WithContext(ctx).Raw(statement, parameters...).Scan(destination)
	if result.Error != nil {
		return &OperationError{Operation: OperationScan, Statement: statement, Err: result.Error}
	}
	reader.logStatement(OperationScan, statement, startedAt, result.RowsAffected)
	return nil
}

// WithConnection pins one pooled connection for the duration of body and returns it on
// every exit path.
func (reader *Reader) WithConnection(ctx context.Context, body func(*Reader) error) error {
	if reader == nil || reader.database == nil {
		return &OperationError{Operation: OperationConnection, Err: errors.New(errorMessageMissingDatabase)}
	}
	var bodyErr error
	connectionErr := reader.database.WithContext(ctx).Connection(func(connection *gorm.DB) error {
		bodyErr = body(&Reader{database: connection, logger: reader.logger})
		return bodyErr
	})
	return wrapScopeError(OperationConnection, connectionErr, bodyErr)
}

// Transaction runs body atomically; an error or panic from body rolls back.
func (reader *Reader) Transaction(ctx context.Context, body func(*Reader) error) error {
	if reader == nil || reader.database == nil {
		return &OperationError{Operation: OperationTransaction, Err: errors.New(errorMessageMissingDatabase)}
	}
	var bodyErr error
	transactionErr := reader.database.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		bodyErr = body(&Reader{database: transaction, logger: reader.logger})
		return bodyErr
	})
	return wrapScopeError(OperationTransaction, transactionErr, bodyErr)
}

// wrapScopeError passes errors returned by body through unchanged and reports the
// scope's own failures (begin, commit, connection acquire) as store errors.
func wrapScopeError(operation string, scopeErr error, bodyErr error) error {
	if scopeErr == nil || (bodyErr != nil && errors.Is(scopeErr, bodyErr)) {
		return scopeErr
	}
	var operationErr *OperationError
	if errors.As(scopeErr, &operationErr) {
		return scopeErr
	}
	return &OperationError{Operation: operation, Err: scopeErr}
}

// Database exposes the underlying handle for schema management.
func (reader *Reader) Database() *gorm.DB {
	return reader.database
}

func (reader *Reader) prepare(operation string, statement string, parameters []any) error {
	if reader == nil || reader.database == nil {
		return &OperationError{Operation: operation, Statement: statement, Err: errors.New(errorMessageMissingDatabase)}
	}
	placeholders := CountPlaceholders(statement)
	if placeholders != len(parameters) {
		return &OperationError{
			Operation: operation,
			Statement: statement,
			Err:       fmt.Errorf("%w: %d placeholders, %d parameters", ErrParameterMismatch, placeholders, len(parameters)),
		}
	}
	return nil
}

func (reader *Reader) logStatement(operation string, statement string, startedAt time.Time, rows int64) {
	reader.logger.Debug(logEventStatement,
		zap.String(logFieldOperation, operation),
		zap.String(logFieldStatement, abbreviate(statement)),
		zap.Duration(logFieldDuration, time.Since(startedAt)),
		zap.Int64(logFieldRowsAffected, rows),
	)
}

// CountPlaceholders counts ? markers outside quoted literals and identifiers.
func CountPlaceholders(statement string) int {
	count := 0
	var quote rune
	for _, character := range statement {
		switch {
		case quote != 0:
			if character == quote {
				quote = 0
			}
		case character == '\'' || character == '"' || character == '`':
			quote = character
		case character == '?':
			count++
		}
	}
	return count
}

func abbreviate(statement string) string {
	collapsed := strings.Join(strings.Fields(statement), " ")
	if len(collapsed) <= maximumLoggedSQLBytes {
		return collapsed
	}
	return collapsed[:maximumLoggedSQLBytes] + "..."
}
