package scraper

import (
	"context"

	"recipecards/pkg/hellofresh"
)

// CatalogClient defines the remote operations a crawl needs
type CatalogClient interface {
	AcquireCredential(ctx context.Context) (hellofresh.Credential, error)
	Search(ctx context.Context, q hellofresh.SearchQuery, cred hellofresh.Credential) (*hellofresh.SearchPage, error)
	DownloadCard(ctx context.Context, link string) ([]byte, error)
}
