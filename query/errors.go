package query

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNoEvaluator     = errors.New("query: evaluator not configured")
	ErrEmptyExpression = errors.New("query: expression must not be empty")
)

// EvaluationError captures evaluator metadata alongside the originating error.
type EvaluationError struct {
	Engine  string
	Expr    string
	Dataset string
	Err     error
}

func (e *EvaluationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("query: %s evaluator %s dataset=%s: %v", e.Engine, describeExpression(e.Expr), e.Dataset, e.Err)
}

func (e *EvaluationError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func describeExpression(expr string) string {
	if expr == "" {
		return "expr=<empty>"
	}
	return fmt.Sprintf("expr=%q", expr)
}

func wrapEvaluatorError(engine string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		return err
	}

	if strings.HasPrefix(err.Error(), "query:") {
		return err
	}
	return fmt.Errorf("query: %s evaluator: %w", engine, err)
}

func wrapEvaluationError(engine, expr, dataset string, err error) error {
	if err == nil {
		return nil
	}

	var evalErr *EvaluationError
	if errors.As(err, &evalErr) {
		if evalErr.Engine == "" {
			evalErr.Engine = engine
		}
		if evalErr.Expr == "" {
			evalErr.Expr = expr
		}
		if evalErr.Dataset == "" {
			evalErr.Dataset = dataset
		}
		return evalErr
	}

	return &EvaluationError{
		Engine:  engine,
		Expr:    expr,
		Dataset: dataset,
		Err:     err,
	}
}
