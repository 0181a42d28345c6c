// Package scraper runs a recipe card crawl from start to finish.
//
// Run acquires the API credential, walks the catalog with a
// hellofresh.Paginator and hands every page to the downloader. Progress is
// checkpointed after each page so that an interrupted crawl can be resumed,
// and the checkpoint is cleared when the crawl completes.
//
// A missing credential, a rejected search or an empty first page ends the
// crawl with an error. Individual card failures only show up in the report.
package scraper
