package workflow

import "context"

// Store is the durable persistence contract for run state, implemented
// concretely by internal/workflow/store against Postgres. The engine
// treats it as an ordinary dependency so tests can swap in an in-memory
// double.
type Store interface {
	Save(ctx context.Context, state State) error
	Load(ctx context.Context, id RunID) (State, bool, error)
	List(ctx context.Context) ([]State, error)
}
