// Package storage saves recipe card PDFs to the output directory.
//
// Saving is idempotent: a card whose file already exists is never rewritten,
// and Save reports false instead of an error. Cards are written to a
// temporary file and published with a hard link (falling back to an
// O_EXCL create), so a file named <name>.pdf is always complete.
//
// Names seen on disk are kept in an LRU cache to avoid a stat per lookup.
//
//	manager, err := storage.NewManager("./recipe-card-pdfs")
//	if err != nil {
//		return err
//	}
//	saved, err := manager.Save("Chicken Tacos", pdf)
package storage
