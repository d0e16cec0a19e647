package usage

import "context"

// EntryCounter reports how many entries the response cache holds.
type EntryCounter interface {
	Count(ctx context.Context) (int64, error)
}
