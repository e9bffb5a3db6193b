package domain

import "context"

// Directory is the read-side port onto the salon catalog service.
//
// Implementations normalize every failure into a *RemoteError and never
// retry; callers decide whether a failed load degrades or aborts the
// operation in progress. ListNear returns entries with DistanceKm set,
// the other listings leave it nil.
type Directory interface {
	ListAll(ctx context.Context) ([]Salon, error)
	ListNear(ctx context.Context, at Coordinate, radiusKm float64) ([]Salon, error)
	ListByCity(ctx context.Context, city, country string) ([]Salon, error)
	GetSalon(ctx context.Context, id int) (Salon, error)
}
