package runner

import (
	"context"
	"fmt"

	"github.com/paasplatform/deepagents/core"
)

// Loop runs the autonomous iteration mode: the same task is handed to a
// fresh-context turn over and over, with the working directory as the only
// carry-over between iterations. maxIterations of 0 means run until the
// context is cancelled. It returns the number of iterations started; the
// error is the context's cancellation cause, nil on a normal finish.
//
// A failed iteration is reported and the loop continues; the next iteration
// sees whatever state the failed one left in the filesystem.
func (r *Runner) Loop(ctx context.Context, task string, maxIterations int) (int, error) {
	iteration := 0
	for maxIterations == 0 || iteration < maxIterations {
		if err := ctx.Err(); err != nil {
			return iteration, err
		}
		iteration++

		r.opts.Logger.Info("loop iteration started", "iteration", iteration, "max", maxIterations)

		iter := New(r.reasoner, r.registry, core.NewSession(core.NewID(), r.session.WorkDir),
			WithMaxSteps(r.opts.MaxSteps),
			WithInstructions(r.opts.Instructions),
			WithMemory(r.opts.Memory),
			WithSkills(r.opts.Skills),
			WithTodos(r.opts.Todos),
			WithOnText(r.opts.OnText),
			WithSessions(r.opts.Sessions),
			WithLogger(r.opts.Logger),
		)

		if _, err := iter.Turn(ctx, iterationPrompt(task, iteration, maxIterations)); err != nil {
			if ctx.Err() != nil {
				return iteration, ctx.Err()
			}
			r.opts.Logger.Error("loop iteration failed", "iteration", iteration, "error", err)
		}
	}
	return iteration, nil
}

// iterationPrompt frames one loop iteration. The framing tells the reasoner
// its memory is the filesystem, not the conversation.
func iterationPrompt(task string, iteration, maxIterations int) string {
	display := fmt.Sprintf("%d", iteration)
	if maxIterations > 0 {
		display = fmt.Sprintf("%d/%d", iteration, maxIterations)
	}
	return fmt.Sprintf(
		"## Ralph Iteration %s\n\n"+
			"Your previous work is in the filesystem. "+
			"Check what exists and keep building.\n\n"+
			"TASK:\n%s\n\n"+
			"Make progress. You'll be called again.",
		display, task,
	)
}
