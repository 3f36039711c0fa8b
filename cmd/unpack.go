package cmd

import (
	"io"
	"os"

	"github.com/abe-nagisa/singlezip/singlezip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var unpackCmd = &cobra.Command{
	Use:   "unpack <archive>",
	Short: "Inflate the entry of an archive written by pack",
	Args:  cobra.ExactArgs(1),
	RunE:  unpack,
}

func init() {
	unpackCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	rootCmd.AddCommand(unpackCmd)
}

func unpack(c *cobra.Command, args []string) error {
	path, err := expand(args[0])
	if err != nil {
		return err
	}
	output, err := c.Flags().GetString("output")
	if err != nil {
		return err
	}

	r, err := singlezip.OpenBackend(path, viper.GetString("backend"))
	if err != nil {
		return err
	}
	defer r.Close()

	out := c.OutOrStdout()
	if output != "-" {
		if output, err = expand(output); err != nil {
			return err
		}
		f, err := os.Create(output)
		if err != nil {
			return errors.Wrap(err, "create output")
		}
		defer f.Close()
		out = f
	}

	n, err := io.CopyBuffer(out, r, make([]byte, bufferSize()))
	if err != nil {
		return errors.Wrap(err, "inflate entry")
	}
	log.WithFields(log.Fields{
		"archive": path,
		"bytes":   n,
	}).Debug("unpacked")
	if f, ok := out.(*os.File); ok && output != "-" {
		return errors.Wrap(f.Close(), "close output")
	}
	return nil
}
