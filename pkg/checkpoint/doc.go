// Package checkpoint saves and restores crawl progress.
//
// A crawl writes a Checkpoint after every finished page, keyed by site
// locale, into a bbolt database in the save directory (FileName). A later
// run started with --resume reads NextOffset and continues from there. The
// checkpoint is deleted once a crawl completes.
package checkpoint
