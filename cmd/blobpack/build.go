package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/meigma/blobpack"
)

type buildFlags struct {
	Base      string
	Extension string
	MaxFiles  int
}

func newBuildCmd(a *app) *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build DIR",
		Short: "Pack the payload files in DIR into DIR/<base>.dat and DIR/<base>.index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := args[0]
			base := flags.Base
			if base == "" {
				abs, err := filepath.Abs(dir)
				if err != nil {
					return err
				}
				base = filepath.Base(abs)
			}

			stats, err := blobpack.Build(cmd.Context(), dir, base,
				blobpack.CreateWithExtension(flags.Extension),
				blobpack.CreateWithMaxFiles(flags.MaxFiles),
				blobpack.CreateWithLogger(a.logger),
			)
			if err != nil {
				return err
			}

			for reason, n := range stats.Skipped {
				a.logger.Info("skipped entries", "reason", reason.String(), "count", n)
			}
			fmt.Fprintf(a.stdout, "%d records written (%s) to %s\n",
				stats.Records,
				humanize.IBytes(uint64(stats.Bytes)), //nolint:gosec // sizes are never negative
				filepath.Join(dir, blobpack.IndexName(base)),
			)
			return nil
		},
	}
	cmd.Flags().StringVar(&flags.Base, "base", "", "Archive base name (default: the directory's name)")
	cmd.Flags().StringVar(&flags.Extension, "ext", blobpack.DefaultExtension, "Payload file extension, matched case-insensitively")
	cmd.Flags().IntVar(&flags.MaxFiles, "max-files", 0, "Maximum payload count (0: default limit, negative: unlimited)")
	return cmd
}
