package cmd

import (
	"fmt"
	"hash/crc32"
	"io"

	"github.com/abe-nagisa/singlezip/singlezip"
	"github.com/klauspost/compress/zip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <archive>",
	Short: "Check an archive with a general zip reader",
	Long: `verify opens the archive with a general purpose zip reader, inflates the
entry and checks its CRC-32 and sizes against both the central directory and
the patched local header.`,
	Args: cobra.ExactArgs(1),
	RunE: verify,
}

var errVerify = errors.New("verification failed")

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func verify(c *cobra.Command, args []string) error {
	path, err := expand(args[0])
	if err != nil {
		return err
	}
	l, err := openLayout(path)
	if err != nil {
		return err
	}

	zr, err := zip.OpenReader(path)
	if err != nil {
		return errors.Wrap(err, "open with zip reader")
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		return errors.Wrapf(errVerify, "%d entries", len(zr.File))
	}
	f := zr.File[0]
	if f.Name != l.Name || f.Method != singlezip.Deflate {
		return errors.Wrapf(errVerify, "entry %q method %d", f.Name, f.Method)
	}

	rc, err := f.Open()
	if err != nil {
		return errors.Wrap(err, "open entry")
	}
	defer rc.Close()
	h := crc32.NewIEEE()
	// the zip reader checks size and crc32 against the directory at EOF
	n, err := io.CopyBuffer(h, rc, make([]byte, bufferSize()))
	if err != nil {
		return errors.Wrap(err, "read entry")
	}
	if uint64(n) != l.LocalUncompressedSize || h.Sum32() != l.LocalCRC32 {
		return errors.Wrapf(errVerify, "local header says %d bytes crc32 %08x, entry has %d bytes crc32 %08x",
			l.LocalUncompressedSize, l.LocalCRC32, n, h.Sum32())
	}
	if l.LocalCompressedSize != f.CompressedSize64 {
		return errors.Wrapf(errVerify, "local header says %d compressed bytes, directory %d",
			l.LocalCompressedSize, f.CompressedSize64)
	}

	log.WithFields(log.Fields{
		"entry": f.Name,
		"bytes": n,
	}).Debug("verified")
	fmt.Fprintf(c.OutOrStdout(), "%s: ok\n", path)
	return nil
}
