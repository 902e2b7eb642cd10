// Package seed populates a document store with fake users for local
// development and demos.
package seed

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/brianvoe/gofakeit/v6"

	"kindling/internal/models"
	"kindling/internal/store"
)

// Seeder writes fake data through the store abstraction, so it works
// against any adapter.
type Seeder struct {
	store store.Store
	rng   *rand.Rand
}

// NewSeeder returns a Seeder. A fixed seed keeps runs reproducible.
func NewSeeder(st store.Store, seedValue int64) *Seeder {
	gofakeit.Seed(seedValue)
	return &Seeder{
		store: st,
		rng:   rand.New(rand.NewSource(seedValue)),
	}
}

// Users creates n fake users and returns their ids. Roughly a third of
// them opt out of presence sharing, and every location lands inside the
// campus bounds.
func (s *Seeder) Users(ctx context.Context, n int) ([]string, error) {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("uid%03d", i+1)
		user := &models.User{
			ID:        id,
			FirstName: gofakeit.FirstName(),
			Photos:    []string{gofakeit.ImageURL(400, 400)},
			Settings:  models.Settings{ShowOnline: s.rng.Intn(3) != 0},
			Location: &models.GeoPoint{
				Latitude:  s.randomBetween(models.CampusBounds.MinLat, models.CampusBounds.MaxLat),
				Longitude: s.randomBetween(models.CampusBounds.MinLng, models.CampusBounds.MaxLng),
			},
		}
		if err := s.store.Set(ctx, models.UsersCollection, id, user.Fields(), false); err != nil {
			return ids, fmt.Errorf("seed user %s: %w", id, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// LikesToward makes a fraction of the seeded users like target, so a demo
// like from target completes a match immediately.
func (s *Seeder) LikesToward(ctx context.Context, target string, others []string, fraction float64) (int, error) {
	liked := 0
	for _, id := range others {
		if id == target || s.rng.Float64() >= fraction {
			continue
		}
		err := s.store.Update(ctx, models.UsersCollection, id, map[string]any{
			"likes": store.ArrayUnion(target),
		})
		if err != nil {
			return liked, fmt.Errorf("seed like %s -> %s: %w", id, target, err)
		}
		liked++
	}
	return liked, nil
}

func (s *Seeder) randomBetween(min, max float64) float64 {
	return min + s.rng.Float64()*(max-min)
}
