package ports

import (
	"context"

	"vodfetch/internal/domain"
)

// ListingFetcher pulls the provider's full title listing. Only the sync path
// uses it; downloads run entirely off the CatalogStore snapshot.
type ListingFetcher interface {
	Movies(ctx context.Context) ([]CatalogTitle, error)
	Series(ctx context.Context) ([]CatalogTitle, error)
	Episodes(ctx context.Context, series CatalogTitle) ([]domain.TitleEntry, error)
}
