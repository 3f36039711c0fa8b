package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/abe-nagisa/singlezip/singlezip"
	homedir "github.com/mitchellh/go-homedir"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "singlezip",
	Short: "Stream one file into a zip64 archive and back",
	Long: `singlezip writes zip archives holding exactly one DEFLATE compressed
entry whose size does not need to be known in advance. Archives may exceed
4 GiB and open with any zip64 capable tool.

The unpack and fetch commands only understand archives written by singlezip.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setupLogging,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.singlezip.yaml)")
	flags.Int("level", singlezip.DefaultLevel, "deflate compression level, 1 (fastest) to 9 (best)")
	flags.String("backend", singlezip.DefaultBackend,
		"deflate implementation, one of "+strings.Join(singlezip.Backends(), ", "))
	flags.Int("buffer-size", 1<<20, "size of the copy buffer in bytes")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	for _, name := range []string{"level", "backend", "buffer-size", "log-level"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".singlezip" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".singlezip")
	}

	viper.SetEnvPrefix("singlezip")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.WithField("file", viper.ConfigFileUsed()).Debug("using config file")
	}
}

func setupLogging(c *cobra.Command, args []string) error {
	level, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return errors.Wrap(err, "log-level")
	}
	log.SetLevel(level)
	return nil
}

func writerOptions() *singlezip.Options {
	return &singlezip.Options{
		Level:   viper.GetInt("level"),
		Backend: viper.GetString("backend"),
	}
}

func bufferSize() int {
	if n := viper.GetInt("buffer-size"); n > 0 {
		return n
	}
	return 32 * 1024
}

// expand resolves a leading ~ in a path argument.
func expand(path string) (string, error) {
	p, err := homedir.Expand(path)
	if err != nil {
		return "", errors.Wrapf(err, "expand %q", path)
	}
	return p, nil
}
