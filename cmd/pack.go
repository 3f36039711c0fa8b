package cmd

import (
	"io"
	"os"

	"github.com/abe-nagisa/singlezip/singlezip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var packCmd = &cobra.Command{
	Use:   "pack [file]",
	Short: "Compress a file, or stdin, into a single entry archive",
	Long: `pack streams its input into a new archive. The entry is named after the
archive's base name without its final extension, so "report.csv.zip" holds
"report.csv". Without a file argument the input is read from stdin and
--output is required.`,
	Args: cobra.MaximumNArgs(1),
	RunE: pack,
}

func init() {
	packCmd.Flags().StringP("output", "o", "", "archive path (default is <file>.zip)")
	rootCmd.AddCommand(packCmd)
}

func pack(c *cobra.Command, args []string) error {
	output, err := c.Flags().GetString("output")
	if err != nil {
		return err
	}

	var in io.Reader = os.Stdin
	if len(args) == 1 {
		path, err := expand(args[0])
		if err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return errors.Wrap(err, "open input")
		}
		defer f.Close()
		in = f
		if output == "" {
			output = path + ".zip"
		}
	}
	if output == "" {
		return errors.New("--output is required when reading stdin")
	}
	if output, err = expand(output); err != nil {
		return err
	}

	w, err := singlezip.Create(output, writerOptions())
	if err != nil {
		return err
	}
	n, err := io.CopyBuffer(w, in, make([]byte, bufferSize()))
	if err != nil {
		if aerr := w.Abort(); aerr != nil {
			log.WithError(aerr).Warn("discard partial archive")
		}
		return errors.Wrap(err, "compress input")
	}
	if err := w.Close(); err != nil {
		os.Remove(output)
		return err
	}

	log.WithFields(log.Fields{
		"archive": output,
		"entry":   w.Name(),
		"bytes":   n,
	}).Info("packed")
	return nil
}
