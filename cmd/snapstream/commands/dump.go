package commands

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ledgerlabs/snapstream/dump"
)

func init() {
	rootCmd.AddCommand(dumpCmd)
}

var dumpCmd = &cobra.Command{
	Use:   "dump <output.db>",
	Short: "Dump all account records to a SQLite database",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := args[0]
		log := logrus.WithField("component", "dump")

		snap, err := openSnapshot(rootCtx)
		if err != nil {
			return err
		}
		if err := dump.ToSQLite(rootCtx, log, snap, path); err != nil {
			return err
		}
		fmt.Println(path)
		return nil
	},
}
