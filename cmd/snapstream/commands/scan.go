package commands

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ledgerlabs/snapstream/accountindex"
	"github.com/ledgerlabs/snapstream/utils"
)

var indexOut string

func init() {
	rootCmd.AddCommand(scanCmd)
	scanCmd.Flags().StringVar(&indexOut, "index-out", "",
		"Write the built index to this file (default: scan.index_path from config)")
}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan all segments and build the account index",
	RunE: func(cmd *cobra.Command, args []string) error {
		log := logrus.WithField("component", "scan")

		snap, err := openSnapshot(rootCtx)
		if err != nil {
			return err
		}

		stats := new(accountindex.BuildStats)
		ix, err := accountindex.Build(rootCtx, log, snap, conf.Scan.ExpectedAccounts, stats)
		if err != nil {
			return err
		}

		out := indexOut
		if out == "" {
			out = conf.Scan.IndexPath
		}
		if out != "" {
			if err := ix.WriteFile(out, snap.Slot()); err != nil {
				return err
			}
			log.WithField("path", out).Info("Index written")
		}
		utils.GC()
		return nil
	},
}
