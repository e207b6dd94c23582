package flows

import (
	"context"
	"time"

	"github.com/MrEthical07/goFedAuth/refresh"
)

// PurgeDeps captures expired-token sweep dependencies.
type PurgeDeps struct {
	Store refresh.Store
	Now   func() time.Time
}

// RunPurge deletes refresh records whose expiry is strictly before now.
func RunPurge(ctx context.Context, deps PurgeDeps) (int, error) {
	return deps.Store.PurgeExpired(ctx, nowFn(deps.Now))
}
