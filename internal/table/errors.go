package table

import "errors"

var (
	ErrTypeMismatch     = errors.New("table: value type disagrees with column")
	ErrNotNullViolation = errors.New("table: null value in a non-null column")
)
