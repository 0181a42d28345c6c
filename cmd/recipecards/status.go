package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"recipecards/pkg/checkpoint"
	"recipecards/pkg/config"
	"recipecards/pkg/logger"
	"recipecards/pkg/storage"
	"recipecards/pkg/ui"
)

var statusDir string

// statusCmd lists the resumable crawls in a save directory
var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show interrupted crawls that can be resumed",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := globalFlags(cmd)
		if cmd.Flags().Changed("save-dir") {
			flags["save-dir"] = statusDir
		}
		cfg, err := config.Load(configFile, flags)
		if err != nil {
			return err
		}

		dir := cfg.Output.SaveDirectory
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			ui.PrintInfo("Save directory", dir+" (not created yet)")
			return nil
		}

		store, err := storage.NewManager(dir)
		if err != nil {
			return err
		}
		ui.PrintInfo("Save directory", store.OutputDir())
		ui.PrintInfo("Cards on disk", fmt.Sprint(store.KnownCount()))

		if _, err := os.Stat(filepath.Join(dir, checkpoint.FileName)); os.IsNotExist(err) {
			ui.PrintInfo("Checkpoints", "none")
			return nil
		}

		cps, err := checkpoint.Open(dir, logger.Nop())
		if err != nil {
			return err
		}
		defer cps.Close()
		ui.PrintInfo("Checkpoint file", cps.Path())

		keys, err := cps.Keys()
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			ui.PrintInfo("Checkpoints", "none")
			return nil
		}

		for _, key := range keys {
			cp, err := cps.Load(key)
			if err != nil {
				ui.PrintError("Failed to read checkpoint "+key, err)
				continue
			}
			if cp == nil {
				continue
			}
			ui.PrintHighlight(key)
			ui.PrintInfo("  Next offset", fmt.Sprintf("%d of %d", cp.NextOffset, cp.Total))
			ui.PrintInfo("  Pages done", fmt.Sprint(cp.Pages))
			ui.PrintInfo("  Saved", fmt.Sprint(cp.Saved))
			ui.PrintInfo("  Failed", fmt.Sprint(cp.Failed))
			ui.PrintInfo("  Updated", cp.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().StringVarP(&statusDir, "save-dir", "s", "", "directory holding the PDF files")
}
