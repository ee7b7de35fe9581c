package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/opencontainers/go-digest"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/meigma/blobpack"
	"github.com/meigma/blobpack/cache/disk"
	blobhttp "github.com/meigma/blobpack/http"
)

// sourceFlags locate the archive a read command works on.
type sourceFlags struct {
	Data     string
	CacheDir string
}

func (f *sourceFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&f.Data, "data", "", "Data file path or URL (default: INDEX with .index replaced by .dat)")
	fs.StringVar(&f.CacheDir, "cache-dir", "", "Cache payloads in this directory across runs")
}

// dataPathFor derives the conventional data file location from an index location.
func dataPathFor(indexPath string) string {
	return strings.TrimSuffix(indexPath, blobpack.IndexSuffix) + blobpack.DataSuffix
}

func isRemote(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// openArchive opens a local or HTTP-published archive.
func (a *app) openArchive(ctx context.Context, indexPath string, flags *sourceFlags) (*blobpack.Archive, error) {
	dataPath := flags.Data
	if dataPath == "" {
		dataPath = dataPathFor(indexPath)
	}

	opts := []blobpack.Option{blobpack.WithLogger(a.logger)}
	if flags.CacheDir != "" {
		c, err := disk.New(flags.CacheDir)
		if err != nil {
			return nil, fmt.Errorf("open cache: %w", err)
		}
		opts = append(opts, blobpack.WithCache(c))
	}

	if !isRemote(indexPath) {
		return blobpack.Open(indexPath, dataPath, opts...)
	}

	indexData, err := blobhttp.FetchIndex(ctx, indexPath)
	if err != nil {
		return nil, err
	}
	src, err := blobhttp.NewSource(ctx, dataPath, blobhttp.WithConditionalHeaders())
	if err != nil {
		return nil, err
	}
	return blobpack.New(indexData, src, opts...)
}

type listFlags struct {
	sourceFlags
	Digest bool
	Human  bool
}

func newListCmd(a *app) *cobra.Command {
	var flags listFlags

	cmd := &cobra.Command{
		Use:     "ls INDEX",
		Aliases: []string{"list"},
		Short:   "List the records of an archive in index order",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0], &flags.sourceFlags)
			if err != nil {
				return err
			}
			defer archive.Close()

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			header := "NAME\tOFFSET\tLENGTH\tRESERVED"
			if flags.Digest {
				header += "\tDIGEST"
			}
			fmt.Fprintln(tw, header)
			for e := range archive.Entries() {
				length := fmt.Sprint(e.Length)
				if flags.Human {
					length = humanize.IBytes(uint64(e.Length)) //nolint:gosec // lengths are never negative
				}
				line := fmt.Sprintf("%s\t%d\t%s\t%d", e.Name, e.Offset, length, e.Reserved)
				if flags.Digest {
					d, err := payloadDigest(archive, e.Name)
					if err != nil {
						return err
					}
					line += "\t" + d.String()
				}
				fmt.Fprintln(tw, line)
			}
			return tw.Flush()
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&flags.Digest, "digest", false, "Print the sha256 digest of each payload")
	cmd.Flags().BoolVarP(&flags.Human, "human", "H", false, "Print lengths in human-readable units")
	return cmd
}

func payloadDigest(archive *blobpack.Archive, name string) (digest.Digest, error) {
	section, err := archive.Section(name)
	if err != nil {
		return "", err
	}
	return digest.FromReader(section)
}

type getFlags struct {
	sourceFlags
	Output string
}

func newGetCmd(a *app) *cobra.Command {
	var flags getFlags

	cmd := &cobra.Command{
		Use:   "get INDEX NAME",
		Short: "Write one payload to stdout or a file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0], &flags.sourceFlags)
			if err != nil {
				return err
			}
			defer archive.Close()

			out := a.stdout
			if flags.Output != "" && flags.Output != "-" {
				f, err := os.Create(flags.Output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}

			if flags.CacheDir != "" {
				content, err := archive.Lookup(args[1])
				if err != nil {
					return err
				}
				_, err = out.Write(content)
				return err
			}

			section, err := archive.Section(args[1])
			if err != nil {
				return err
			}
			_, err = io.Copy(out, section)
			return err
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVarP(&flags.Output, "output", "o", "", "Write to this file instead of stdout")
	return cmd
}

type extractFlags struct {
	sourceFlags
	Extension string
	Overwrite bool
	Workers   int
}

func newExtractCmd(a *app) *cobra.Command {
	var flags extractFlags

	cmd := &cobra.Command{
		Use:   "extract INDEX DEST [NAME...]",
		Short: "Write payloads to DEST as <name><ext> files",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			archive, err := a.openArchive(cmd.Context(), args[0], &flags.sourceFlags)
			if err != nil {
				return err
			}
			defer archive.Close()

			stats, err := archive.CopyTo(cmd.Context(), args[1], args[2:],
				blobpack.CopyWithExtension(flags.Extension),
				blobpack.CopyWithOverwrite(flags.Overwrite),
				blobpack.CopyWithWorkers(flags.Workers),
			)
			if err != nil {
				return err
			}
			fmt.Fprintf(a.stdout, "%d files extracted (%s), %d skipped\n",
				stats.FileCount,
				humanize.IBytes(uint64(stats.TotalBytes)), //nolint:gosec // sizes are never negative
				stats.Skipped,
			)
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().StringVar(&flags.Extension, "ext", blobpack.DefaultExtension, "Extension appended to payload names")
	cmd.Flags().BoolVar(&flags.Overwrite, "overwrite", false, "Replace existing files")
	cmd.Flags().IntVar(&flags.Workers, "workers", 0, "Concurrent lookups (0: GOMAXPROCS)")
	return cmd
}
