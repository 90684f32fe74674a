package pantry

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"
)

// ExpiringItems returns items whose expiry date falls before now+within, soonest
// first. Items that already expired are included.
func (s *Service) ExpiringItems(within time.Duration) ([]*InventoryItem, error) {
	items, err := s.db.ListAllItems()
	if err != nil {
		return nil, fmt.Errorf("listing inventory: %w", err)
	}

	cutoff := s.timeSource.Now().Add(within)
	expiring := make([]*InventoryItem, 0)
	for _, item := range items {
		if item.ExpiresAt != nil && item.ExpiresAt.Before(cutoff) {
			expiring = append(expiring, item)
		}
	}
	slices.SortStableFunc(expiring, func(a, b *InventoryItem) int {
		return a.ExpiresAt.Compare(*b.ExpiresAt)
	})
	return expiring, nil
}

// WatchExpiry logs expiring items every interval until ctx is done
func (s *Service) WatchExpiry(ctx context.Context, interval, within time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.logExpiring(within)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) logExpiring(within time.Duration) {
	items, err := s.ExpiringItems(within)
	if err != nil {
		slog.Error("Failed to check expiring items", "error", err)
		return
	}

	now := s.timeSource.Now()
	for _, item := range items {
		if item.ExpiresAt.Before(now) {
			slog.Warn("Item expired", "id", item.ID, "name", item.Name, "location", item.Location, "expired_at", item.ExpiresAt)
			continue
		}
		slog.Info("Item expiring soon", "id", item.ID, "name", item.Name, "location", item.Location, "expires_at", item.ExpiresAt)
	}
}
