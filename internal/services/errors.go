package services

import (
	"errors"
	"fmt"

	"github.com/juridico/conciliacao-api/internal/lock"
	"github.com/juridico/conciliacao-api/internal/repository"
	"github.com/juridico/conciliacao-api/internal/statemachine"
)

// Common service errors
var (
	ErrValidation   = errors.New("dados inválidos")
	ErrConflict     = errors.New("conflito de vínculo")
	ErrNotFound     = errors.New("registro não encontrado")
	ErrDatabase     = errors.New("falha no banco de dados")
	ErrInvalidState = fmt.Errorf("%w: transição de estado inválida", ErrValidation)
)

// Error codes returned to callers
const (
	CodeValidation = "VALIDATION_ERROR"
	CodeConflict   = "CONFLICT"
	CodeNotFound   = "NOT_FOUND"
	CodeDatabase   = "DATABASE_ERROR"
)

// RuleError is a validation failure that names the rule that was broken
type RuleError struct {
	Rule    string
	Message string
}

func (e *RuleError) Error() string {
	return e.Message
}

func (e *RuleError) Unwrap() error {
	return ErrValidation
}

func ruleError(rule, format string, args ...interface{}) error {
	return &RuleError{Rule: rule, Message: fmt.Sprintf(format, args...)}
}

// stateError reports a gated transition attempted from the wrong state
func stateError(rule, format string, args ...interface{}) error {
	return fmt.Errorf("%w: %w", ErrInvalidState, &RuleError{Rule: rule, Message: fmt.Sprintf(format, args...)})
}

// Code maps an error onto the error taxonomy
func Code(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return CodeValidation
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeDatabase
	}
}

// Rule returns the failing rule name of a validation error, if any
func Rule(err error) string {
	var re *RuleError
	if errors.As(err, &re) {
		return re.Rule
	}
	return ""
}

// translate converts store-layer errors into the service taxonomy
func translate(err error, what string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConflict), errors.Is(err, ErrNotFound), errors.Is(err, ErrDatabase):
		return err
	case errors.Is(err, statemachine.ErrTransitionNotAllowed):
		return fmt.Errorf("%w: %w", ErrInvalidState, err)
	case errors.Is(err, statemachine.ErrMissingRequirement):
		return fmt.Errorf("%w: %w", ErrValidation, err)
	case errors.Is(err, repository.ErrRecordNotFound):
		return fmt.Errorf("%w: %s", ErrNotFound, what)
	case errors.Is(err, repository.ErrDuplicate):
		return fmt.Errorf("%w: %s", ErrConflict, what)
	case errors.Is(err, lock.ErrNotAcquired):
		return fmt.Errorf("%w: %s em processamento por outra operação", ErrConflict, what)
	default:
		return fmt.Errorf("%w: %v", ErrDatabase, err)
	}
}
