package engine

import (
	"context"
	"time"

	"github.com/cuemby/gplmt/pkg/types"
)

// runLoop drives one of the three loop modes, each iteration running
// the loop body's steps against a nested ExecutionContext and joining
// it before the next iteration begins -- matching
// run_loop_counted/run_loop_until/run_loop_listing's "nested_ec, then
// join() at the end of every iteration" shape in the original.
func (ec *ExecutionContext) runLoop(ctx context.Context, loop types.StepLoop, varEnv types.Env) error {
	nested := NewExecutionContext(ec.runner, ec.registry, ec.env)

	switch loop.Mode {
	case types.LoopCounted:
		for i := 0; i < loop.Repeat; i++ {
			if ctx.Err() != nil {
				return types.ErrCancelled
			}
			if err := runLoopBody(ctx, nested, loop.Body, varEnv); err != nil {
				return err
			}
		}
		return nil

	case types.LoopUntil:
		if !loop.Until.IsZero() {
			return runUntilDeadline(ctx, nested, loop.Body, varEnv, loop.Until)
		}
		return runUntilDeadline(ctx, nested, loop.Body, varEnv, time.Now().Add(loop.Duration))

	case types.LoopListing:
		for _, value := range loop.List {
			if ctx.Err() != nil {
				return types.ErrCancelled
			}
			iterEnv := varEnv.With(types.Env{loop.Param: value})
			if err := runLoopBody(ctx, nested, loop.Body, iterEnv); err != nil {
				return err
			}
		}
		return nil

	default:
		return &types.SyntaxError{Message: "unknown loop mode"}
	}
}

// runUntilDeadline always runs the body at least once before checking
// deadline -- a duration/until loop must not run zero times even when
// the deadline has already elapsed by the time the first check would
// happen (duration="PT0S" is the boundary case).
func runUntilDeadline(ctx context.Context, nested *ExecutionContext, body []types.StepNode, varEnv types.Env, deadline time.Time) error {
	for {
		if ctx.Err() != nil {
			return types.ErrCancelled
		}
		if err := runLoopBody(ctx, nested, body, varEnv); err != nil {
			return err
		}
		if !time.Now().Before(deadline) {
			return nil
		}
	}
}

func runLoopBody(ctx context.Context, nested *ExecutionContext, body []types.StepNode, varEnv types.Env) error {
	for _, step := range body {
		if err := nested.RunStep(ctx, step, varEnv); err != nil {
			return err
		}
	}
	return nested.Join(nil)
}
