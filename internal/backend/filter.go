package backend

import (
	"fmt"
	"strings"

	"github.com/coderag/engine/internal/errors"
)

// Operator is one of the backend's restricted filter-expression
// comparison operators.
type Operator string

const (
	OpEq Operator = "eq"
	OpNe Operator = "ne"
	OpGt Operator = "gt"
	OpGe Operator = "ge"
	OpLt Operator = "lt"
	OpLe Operator = "le"
)

func (o Operator) valid() bool {
	switch o {
	case OpEq, OpNe, OpGt, OpGe, OpLt, OpLe:
		return true
	}
	return false
}

// FilterClause is one "field operator value" clause. Only string
// values are supported here; numeric/boolean filters would
// add typed variants, not a generic any-valued clause, to keep the
// grammar closed.
type FilterClause struct {
	Field    string
	Operator Operator
	Value    string
}

// SanitizeFilter renders clause into the backend's restricted filter
// grammar ("field operator 'value'"), single-quoting the value and
// doubling any embedded single quotes. It rejects control characters
// and any value that would produce an unbalanced quote, returning
// invalid_query rather than ever emitting unquoted client text.
func SanitizeFilter(clause FilterClause) (string, error) {
	if !clause.Operator.valid() {
		return "", errors.QueryError(errors.KindInvalidQuery, "unsupported filter operator: "+string(clause.Operator), nil)
	}
	if clause.Field == "" || !isSafeField(clause.Field) {
		return "", errors.QueryError(errors.KindInvalidQuery, "invalid filter field: "+clause.Field, nil)
	}
	if containsControlChar(clause.Value) {
		return "", errors.QueryError(errors.KindInvalidQuery, "filter value contains control characters", nil)
	}

	escaped := strings.ReplaceAll(clause.Value, "'", "''")
	return fmt.Sprintf("%s %s '%s'", clause.Field, clause.Operator, escaped), nil
}

// isSafeField restricts filter field names to identifier characters so
// a field name can never itself break out of the grammar.
func isSafeField(field string) bool {
	for _, r := range field {
		if !(r == '_' || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '.') {
			return false
		}
	}
	return true
}

func containsControlChar(s string) bool {
	for _, r := range s {
		if r < 0x20 || r == 0x7f {
			return true
		}
	}
	return false
}
