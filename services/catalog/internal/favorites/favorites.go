// Package favorites keeps a per-client list of saved titles.
package favorites

import (
	"context"
	"errors"
	"sort"

	"github.com/example/streambox/services/catalog/internal/media"
)

var ErrClientRequired = errors.New("client id required")

// Store defines persistence for favorites. Entries are keyed by
// (TMDBID, Type) within a client and kept in insertion order.
type Store interface {
	List(ctx context.Context, clientID string) ([]media.Media, error)
	// Add is a no-op returning false when the title is already present.
	Add(ctx context.Context, clientID string, m media.Media) (bool, error)
	// Remove is a no-op when the title is absent.
	Remove(ctx context.Context, clientID string, tmdbID int64, kind media.Kind) error
	Contains(ctx context.Context, clientID string, tmdbID int64, kind media.Kind) (bool, error)
}

// RecommendationGenres returns up to three genre labels ordered by how many
// favorites carry them. Ties go to the alphabetically first label.
func RecommendationGenres(list []media.Media) []string {
	counts := make(map[string]int)
	for _, m := range list {
		for _, g := range m.Genres {
			if g != "" {
				counts[g]++
			}
		}
	}
	labels := make([]string, 0, len(counts))
	for g := range counts {
		labels = append(labels, g)
	}
	sort.Slice(labels, func(i, j int) bool {
		if counts[labels[i]] != counts[labels[j]] {
			return counts[labels[i]] > counts[labels[j]]
		}
		return labels[i] < labels[j]
	})
	if len(labels) > 3 {
		labels = labels[:3]
	}
	return labels
}
