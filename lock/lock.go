package lock

import (
	"context"
	"fmt"
)

// Locker serializes work on a key, e.g. all contributions to one objective
type Locker interface {
	// Lock blocks until the key is held or ctx is done. The returned func
	// releases the key.
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// ObjectiveKey makes a lock key from an objective id
func ObjectiveKey(objectiveID int) string {
	return fmt.Sprintf("objective-%d", objectiveID)
}
