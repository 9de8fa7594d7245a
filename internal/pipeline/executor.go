package pipeline

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/meridian/internal/models"
)

// Task is one independently timed-out unit of pipeline work. Timeouts belong
// to the task's own call; the executor imposes none.
type Task func(ctx context.Context) (string, error)

// RunAll executes every task concurrently and returns one settled outcome per
// name. A task's error or panic becomes a Failed outcome for that name only;
// siblings are never cancelled and run to their own completion or timeout.
// The map is returned only after the last task settles.
func RunAll(ctx context.Context, logger arbor.ILogger, tasks map[string]Task) map[string]models.ModuleOutcome {
	outcomes := make(map[string]models.ModuleOutcome, len(tasks))

	var mu sync.Mutex
	var wg sync.WaitGroup
	for name, task := range tasks {
		wg.Add(1)
		go func(name string, task Task) {
			defer wg.Done()

			outcome := runTask(ctx, task)
			if outcome.Failed {
				logger.Warn().
					Str("task", name).
					Str("reason", outcome.Reason).
					Msg("Pipeline task failed")
			}

			mu.Lock()
			outcomes[name] = outcome
			mu.Unlock()
		}(name, task)
	}
	wg.Wait()

	return outcomes
}

// runTask settles one task, converting panics into Failed outcomes so a bad
// thunk cannot take down the run.
func runTask(ctx context.Context, task Task) (outcome models.ModuleOutcome) {
	defer func() {
		if r := recover(); r != nil {
			outcome = models.FailedOutcome(fmt.Sprintf("panic: %v", r))
		}
	}()

	text, err := task(ctx)
	if err != nil {
		return models.FailedOutcome(err.Error())
	}
	return models.TextOutcome(text)
}
