package query

import (
	"time"

	"go.uber.org/zap"
)

// WithLogging wraps e so every evaluation is logged at debug level with its
// engine, expression, dataset and duration. Failures log at warn level.
func WithLogging(e Evaluator, logger *zap.Logger) Evaluator {
	if e == nil || logger == nil {
		return e
	}
	return &loggedEvaluator{next: e, logger: logger}
}

type loggedEvaluator struct {
	next   Evaluator
	logger *zap.Logger
}

func (l *loggedEvaluator) Evaluate(ctx Context, expr string) (any, error) {
	start := time.Now()
	out, err := l.next.Evaluate(ctx, expr)
	l.log(ctx, expr, time.Since(start), err)
	return out, err
}

func (l *loggedEvaluator) Compile(expr string) (Compiled, error) {
	compiled, err := l.next.Compile(expr)
	if err != nil {
		l.log(Context{}, expr, 0, err)
		return nil, err
	}
	return &loggedCompiled{parent: l, next: compiled, expr: expr}, nil
}

func (l *loggedEvaluator) log(ctx Context, expr string, took time.Duration, err error) {
	fields := []zap.Field{
		zap.String("engine", Engine(l.next)),
		zap.String("expr", expr),
		zap.String("dataset", ctx.Dataset),
		zap.Duration("duration", took),
	}
	if err != nil {
		l.logger.Warn("query evaluation failed", append(fields, zap.Error(err))...)
		return
	}
	l.logger.Debug("query evaluated", fields...)
}

type loggedCompiled struct {
	parent *loggedEvaluator
	next   Compiled
	expr   string
}

func (c *loggedCompiled) Evaluate(ctx Context) (any, error) {
	start := time.Now()
	out, err := c.next.Evaluate(ctx)
	c.parent.log(ctx, c.expr, time.Since(start), err)
	return out, err
}
