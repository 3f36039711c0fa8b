package cmd

import (
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/abe-nagisa/singlezip/singlezip"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <url>",
	Short: "Download an archive written by pack and inflate it on the fly",
	Long: `fetch streams an archive over HTTP and inflates its entry while it
downloads, without storing the archive. --offset starts the download at the
archive's local header when it is embedded in a larger file; the server must
then honour range requests.`,
	Args: cobra.ExactArgs(1),
	RunE: fetch,
}

func init() {
	fetchCmd.Flags().StringP("output", "o", "-", "output file, - for stdout")
	fetchCmd.Flags().Int64("offset", 0, "byte offset of the archive inside the resource")
	rootCmd.AddCommand(fetchCmd)
}

func fetch(c *cobra.Command, args []string) error {
	url := args[0]
	output, err := c.Flags().GetString("output")
	if err != nil {
		return err
	}
	offset, err := c.Flags().GetInt64("offset")
	if err != nil {
		return err
	}

	body, err := getFileBody(url, offset)
	if err != nil {
		return err
	}
	defer body.Close()

	r, err := singlezip.NewReader(body)
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
		return errors.Wrap(err, "inflate download")
	}
	log.WithFields(log.Fields{
		"url":   url,
		"bytes": n,
	}).Debug("fetched")
	if f, ok := out.(*os.File); ok && output != "-" {
		return errors.Wrap(f.Close(), "close output")
	}
	return nil
}

func getFileBody(url string, from int64) (io.ReadCloser, error) {
	// create get request
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	// set download range
	if from > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", from))
	}

	res, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "download")
	}

	want := http.StatusOK
	if from > 0 {
		want = http.StatusPartialContent
	}
	if res.StatusCode != want {
		res.Body.Close()
		return nil, errors.Errorf("download %s: %s", url, res.Status)
	}
	return res.Body, nil
}
