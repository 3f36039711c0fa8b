package cmd

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/abe-nagisa/singlezip/singlezip"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <archive>",
	Short: "Print the record layout of an archive written by pack",
	Args:  cobra.ExactArgs(1),
	RunE:  inspect,
}

func init() {
	rootCmd.AddCommand(inspectCmd)
}

func openLayout(arg string) (*singlezip.Layout, error) {
	path, err := expand(arg)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open archive")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return nil, errors.Wrap(err, "stat archive")
	}
	return singlezip.Inspect(f, fi.Size())
}

func inspect(c *cobra.Command, args []string) error {
	l, err := openLayout(args[0])
	if err != nil {
		return err
	}
	return printLayout(c.OutOrStdout(), l)
}

func printLayout(out io.Writer, l *singlezip.Layout) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "entry\t%s\n", l.Name)
	fmt.Fprintf(tw, "local header\t%d\n", l.HeaderOffset)
	fmt.Fprintf(tw, "data\t%d\n", l.DataOffset)
	fmt.Fprintf(tw, "crc32\t%08x\n", l.CRC32)
	fmt.Fprintf(tw, "compressed\t%d\n", l.CompressedSize)
	fmt.Fprintf(tw, "uncompressed\t%d\n", l.UncompressedSize)
	fmt.Fprintf(tw, "central directory\t%d (%d bytes)\n", l.DirectoryOffset, l.DirectorySize)
	fmt.Fprintf(tw, "zip64 directory field\t%t\n", l.DirectoryZip64)
	if l.Zip64End() {
		fmt.Fprintf(tw, "zip64 end record\t%d\n", l.Zip64EndOffset)
		fmt.Fprintf(tw, "zip64 end locator\t%d\n", l.LocatorOffset)
	} else {
		fmt.Fprintf(tw, "zip64 end record\tnone\n")
	}
	fmt.Fprintf(tw, "end record\t%d\n", l.EndOffset)
	if l.LocalCRC32 != l.CRC32 || l.LocalCompressedSize != l.CompressedSize || l.LocalUncompressedSize != l.UncompressedSize {
		fmt.Fprintf(tw, "local header\tmismatch: crc32 %08x compressed %d uncompressed %d\n",
			l.LocalCRC32, l.LocalCompressedSize, l.LocalUncompressedSize)
	}
	return tw.Flush()
}
