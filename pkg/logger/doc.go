// Package logger provides structured logging for the recipe card crawler.
//
// It wraps zerolog behind a small Logger interface so packages can accept a
// logger as a dependency and tests can swap in a TestLogger that records
// every message:
//
//	logger.Initialize(&cfg.Logging)
//	log := logger.GetLogger().WithField("component", "downloader")
//	log.InfoWithFields("batch complete", map[string]interface{}{
//	    "batch": 3,
//	    "saved": 10,
//	})
//
// Console output is colourised only when stdout is a terminal. Setting
// LoggingConfig.File sends JSON lines to that file in addition to the console.
package logger
