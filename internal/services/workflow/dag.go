package workflow

import (
	"context"
	"fmt"
	"sync"

	"github.com/ternarybob/arbor"
)

// Step is one node of the check DAG. Run executes once every dependency
// has finished; Gate (when set) can skip the step based on accumulated
// state. A step error is recorded and the DAG keeps going, letting
// downstream gates decide what still makes sense.
type Step struct {
	Name string
	Deps []string
	Gate func() bool
	Run  func(ctx context.Context) error
}

// StepResult records one step's outcome
type StepResult struct {
	Name    string
	Skipped bool
	Err     error
}

// runDAG executes steps in topological order, running independent ready
// steps concurrently. It returns per-step results; only a context error
// aborts the traversal early.
func runDAG(ctx context.Context, steps []Step, logger arbor.ILogger) (map[string]StepResult, error) {
	byName := make(map[string]*Step, len(steps))
	indegree := make(map[string]int, len(steps))
	dependents := make(map[string][]string)

	for i := range steps {
		step := &steps[i]
		if _, dup := byName[step.Name]; dup {
			return nil, fmt.Errorf("duplicate step %q", step.Name)
		}
		byName[step.Name] = step
		indegree[step.Name] = len(step.Deps)
	}
	for _, step := range steps {
		for _, dep := range step.Deps {
			if _, ok := byName[dep]; !ok {
				return nil, fmt.Errorf("step %q depends on unknown step %q", step.Name, dep)
			}
			dependents[dep] = append(dependents[dep], step.Name)
		}
	}

	results := make(map[string]StepResult, len(steps))
	finished := make(chan string)

	var mu sync.Mutex
	running := 0

	launch := func(name string) {
		running++
		go func() {
			step := byName[name]

			result := StepResult{Name: name}
			if step.Gate != nil && !step.Gate() {
				result.Skipped = true
			} else if err := step.Run(ctx); err != nil {
				result.Err = err
			}

			mu.Lock()
			results[name] = result
			mu.Unlock()

			if result.Err != nil {
				logger.Debug().Str("step", name).Err(result.Err).Msg("Workflow step failed")
			} else if result.Skipped {
				logger.Debug().Str("step", name).Msg("Workflow step skipped")
			}

			finished <- name
		}()
	}

	for name, deg := range indegree {
		if deg == 0 {
			launch(name)
		}
	}
	if running == 0 {
		return nil, fmt.Errorf("workflow has no runnable steps")
	}

	completed := 0
	for completed < len(steps) {
		select {
		case <-ctx.Done():
			// sweep up steps already launched, then bail
			for running > 0 {
				<-finished
				running--
				completed++
			}
			return results, ctx.Err()
		case name := <-finished:
			running--
			completed++
			for _, dependent := range dependents[name] {
				indegree[dependent]--
				if indegree[dependent] == 0 {
					launch(dependent)
				}
			}
			if running == 0 && completed < len(steps) {
				return results, fmt.Errorf("workflow contains a dependency cycle")
			}
		}
	}

	return results, nil
}
