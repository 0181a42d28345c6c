// Package hellofresh is the client for the recipe site and its catalog API.
//
// A crawl takes three steps, all through Client:
//
//  1. AcquireCredential loads the public site once and extracts the bearer
//     token embedded in its markup (see ExtractToken).
//  2. Search fetches one page of the catalog for a SearchQuery. Paginator
//     drives Search from the first page to the last, lazily.
//  3. DownloadCard fetches a single recipe card PDF.
//
// Site and search requests share a rate limiter; card downloads do not.
// Errors are typed through recipecards/pkg/errors: ErrCredentialNotFound,
// SearchRequestFailedError and ErrEmptyCatalog for the API, and *errors.Error
// for transport and status failures.
package hellofresh
