// Package history supplies the daily sales series the forecast and anomaly
// services run on.
package history

import (
	"context"
	"errors"
	"fmt"

	"github.com/pifses/mlpipeline/internal/analytics"
)

// ErrNotFound is returned when a source has no history for the pair
var ErrNotFound = errors.New("history not found")

// Source supplies an ordered series of the most recent days observations
// for a (store, product) pair, oldest first.
type Source interface {
	Series(ctx context.Context, storeID, productID string, days int) (analytics.Series, error)
}

// Key identifies a series request
type Key struct {
	StoreID   string
	ProductID string
	Days      int
}

func (k Key) String() string {
	return fmt.Sprintf("%s:%s:%d", k.StoreID, k.ProductID, k.Days)
}

func validateDays(days int) error {
	if days < 1 {
		return fmt.Errorf("days must be positive, got %d", days)
	}
	return nil
}
