package postgres

import (
	"errors"
	"fmt"
	"math"

	sq "github.com/Masterminds/squirrel"
)

// psql is the shared statement builder configured for PostgreSQL dollar placeholders.
var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func toTodoID(v int64) (uint32, error) {
	if v < 0 || v > math.MaxUint32 {
		return 0, fmt.Errorf("todo id %d out of range", v)
	}
	return uint32(v), nil
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 100 {
		return 100
	}
	return limit
}

var errNilVersion = errors.New("nil todo version")
