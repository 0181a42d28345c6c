// Package downloader fetches the recipe cards of one search page.
//
// Jobs are split into batches of Options.ParallelDownloads. A batch is
// downloaded concurrently and fully joined before its cards are saved and
// the next batch starts, after Options.BatchDelay. Connection-reset class
// failures are retried with a random delay; any other failure marks the item
// failed without affecting the rest of the batch.
package downloader
