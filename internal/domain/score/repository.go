package score

import "context"

type Repository interface {
	// Get returns nil, nil when no score is cached.
	Get(ctx context.Context, userID string) (*Score, error)
	// Generation returns the user's invalidation counter, 0 if never invalidated.
	Generation(ctx context.Context, userID string) (int64, error)
	// Save stores s only while the user's generation still equals generation
	// and reports whether it did.
	Save(ctx context.Context, s *Score, generation int64) (bool, error)
	// Invalidate drops the cached score and advances the generation.
	Invalidate(ctx context.Context, userID string) error
}
