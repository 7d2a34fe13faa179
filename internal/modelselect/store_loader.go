package modelselect

import (
	"context"

	"github.com/limaronaldo/orc-task/internal/task"
)

// NewStoreLoader builds a Loader from a taskstore.Store's ListModelConfigs,
// used to seed the TTL cache without modelselect importing taskstore directly.
func NewStoreLoader(list func(ctx context.Context) ([]*task.ModelConfig, error)) Loader {
	return func(ctx context.Context) (map[string]string, error) {
		rows, err := list(ctx)
		if err != nil {
			return nil, err
		}
		out := make(map[string]string, len(rows))
		for _, r := range rows {
			out[r.Position] = r.ModelID
		}
		return out, nil
	}
}
