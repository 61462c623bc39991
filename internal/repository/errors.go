package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	// ErrRecordNotFound is returned when a lookup matches no row
	ErrRecordNotFound = gorm.ErrRecordNotFound
	// ErrDuplicate is returned when a write violates a unique constraint
	ErrDuplicate = errors.New("duplicate key")
)

const uniqueViolation = "23505"

// wrapErr normalizes driver errors into the repository sentinels
func wrapErr(err error) error {
	if err == nil {
		return nil
	}
	if isDuplicateKeyError(err, "") || errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %v", ErrDuplicate, err)
	}
	return err
}

// isDuplicateKeyError reports a unique violation, optionally restricted to one constraint
func isDuplicateKeyError(err error, constraintName string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation && (constraintName == "" || pgErr.ConstraintName == constraintName)
	}
	return false
}

// IsDuplicate reports whether err is a unique constraint violation
func IsDuplicate(err error) bool {
	return errors.Is(err, ErrDuplicate)
}
