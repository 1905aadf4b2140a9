package workflow

import (
	"context"
	"fmt"

	"github.com/alitto/pond/v2"
)

// BulkResult is the outcome of one machine in FireAll.
type BulkResult[T any] struct {
	Machine *Machine[T]
	Result  Result
	Err     error
}

// FireAll fires event on every machine concurrently, bounded by the
// BulkConcurrency of the first machine's definition. Results are in the
// order of machines. Each machine must appear at most once; a duplicate
// fails with ErrTransitionInProgress or runs after the other, depending on
// scheduling.
func FireAll[T any](ctx context.Context, machines []*Machine[T], event string, opts ...FireOption) []BulkResult[T] {
	results := make([]BulkResult[T], len(machines))
	if len(machines) == 0 {
		return results
	}

	workers := max(machines[0].def.config.BulkConcurrency, 1)

	pool := pond.NewPool(workers, pond.WithContext(ctx))

	tasks := make([]pond.Task, len(machines))

	for i, machine := range machines {
		results[i].Machine = machine

		tasks[i] = pool.Submit(func() {
			res, err := machine.Fire(ctx, event, opts...)
			results[i].Result = res
			results[i].Err = err
		})
	}

	for i, task := range tasks {
		// A panicking callback or a cancelled ctx surfaces here.
		if err := task.Wait(); err != nil && results[i].Err == nil {
			results[i].Result.Event = event
			results[i].Err = fmt.Errorf("failed to fire %s: %w", event, err)
		}
	}

	pool.StopAndWait()

	return results
}
