package ports

import (
	"context"
	"time"
)

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

// Scheduler runs a job periodically until the context is cancelled.
type Scheduler interface {
	Every(ctx context.Context, interval time.Duration, job func(ctx context.Context)) error
}
