package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// Postgres SQLSTATE codes the storefront schema can raise.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// ErrorDump is the flattened view of an error chain used for request logs.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg, ok := postgresError(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
	}
	return d
}

// LogFields renders the dump as structured log fields. Postgres fields are
// only present when the chain carried a driver error.
func (d ErrorDump) LogFields() map[string]any {
	fields := map[string]any{
		"error":       d.TopMessage,
		"error_code":  d.Code,
		"error_chain": d.Chain,
	}
	if d.PGCode != "" {
		fields["pg_code"] = d.PGCode
		fields["pg_detail"] = d.PGDetail
		fields["pg_message"] = d.PGMessage
		fields["pg_table"] = d.PGTable
		fields["pg_column"] = d.PGColumn
		fields["pg_constraint"] = d.PGConstraint
	}
	return fields
}

type constraintRule struct {
	pgCode  string
	code    Code
	message string
}

// constraintRules maps schema constraints onto domain errors so a violation
// that slips past service checks still surfaces with the right code.
var constraintRules = map[string]constraintRule{
	"chk_product_variants_stock":      {pgCode: pgCheckViolation, code: CodeInsufficientStock, message: "insufficient stock"},
	"fk_order_lines_variant":          {pgCode: pgForeignKeyViolation, code: CodeValidation, message: "variant does not exist"},
	"idx_payment_callbacks_signature": {pgCode: pgUniqueViolation, code: CodeStateConflict, message: "payment callback already recorded"},
	"chk_orders_status":               {pgCode: pgCheckViolation, code: CodeValidation, message: "invalid order status"},
}

// FromConstraint translates a known constraint violation into a typed error.
// It returns nil for anything else.
func FromConstraint(err error) *Error {
	pg, ok := postgresError(err)
	if !ok || pg.constraint == "" {
		return nil
	}
	rule, ok := constraintRules[pg.constraint]
	if !ok || rule.pgCode != pg.code {
		return nil
	}
	return Wrap(rule.code, err, rule.message)
}

type pgFields struct {
	code, constraint, table, column, detail, message string
}

func postgresError(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}
