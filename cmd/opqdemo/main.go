// Command opqdemo runs a small tree of Tasks against an opqueue.Queue:
// a producer Task that Produces two children gated by a shared
// exclusivity category, one of which is itself timed out, and an
// observer logging the root Task's execute, cancel and finish events.
// It exists to exercise the
// primitive end-to-end, the way go-sup/demoapp/tasktree exercised its
// own supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/relaycore/opq"
	"github.com/relaycore/opq/opconditions"
	"github.com/relaycore/opq/opobservers"
	"github.com/relaycore/opq/opqueue"
)

func main() {
	q := opqueue.NewQueue(
		opqueue.WithName("opqdemo"),
		opqueue.WithMaxConcurrentTasks(2),
	)

	logger := opq.DefaultLogger()
	observer := opobservers.NewLoggingObserver(logger)

	root := opq.TaskOfFunc("root", func(ctx context.Context, t *opq.Task) error {
		for i := 0; i < 2; i++ {
			child := buildChild(i)
			if _, err := t.Produce(child, nil); err != nil {
				return fmt.Errorf("producing child %d: %w", i, err)
			}
		}
		return nil
	})
	root.AddObserver(observer)

	future := q.AddTask(root)
	if err := future.Wait(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "root finished with errors:", err)
	}

	q.Close()
}

func buildChild(i int) *opq.Task {
	name := fmt.Sprintf("child-%d", i)
	t := opq.TaskOfFunc(name, func(ctx context.Context, t *opq.Task) error {
		select {
		case <-time.After(50 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return errors.New("child cancelled before completing")
		}
	})
	t.AddCondition(opconditions.MutuallyExclusive("demo-resource"))
	if i == 1 {
		t.AddObserver(opobservers.NewTimeoutObserver(10 * time.Millisecond))
	}
	return t
}
