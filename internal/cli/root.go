package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/codedogQBY/ReadAny/internal/config"
	"github.com/codedogQBY/ReadAny/internal/engine"
	"github.com/codedogQBY/ReadAny/pkg/types"
)

var (
	cfgFile string
	verbose bool
	cfg     *config.Config

	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "readany",
	Short: "ReadAny - semantic and keyword search inside e-books",
	Long: `ReadAny splits the chapters of a document into overlapping chunks, embeds
them with a configurable provider and answers semantic, keyword or hybrid
queries against a single document.

Documents live under the library root, one sub-directory per book with one
file per chapter (.html, .xhtml, .md or .txt).

Example usage:
  readany vectorize moby-dick               # Chunk and embed a document
  readany search moby-dick -q "the whale"   # Rank passages of a document
  readany serve                             # Run the MCP server on stdio`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is not an error
		_ = godotenv.Load()

		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, _, err = config.LoadDefault()
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if verbose {
			cfg.Logging.Verbose = true
		}
		return nil
	},
}

// Execute runs the root command with the build metadata of the binary
func Execute(buildVersion, builtAt string) {
	version, buildTime = buildVersion, builtAt
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $READANY_CONFIG, ./readany.yaml or ~/.readany/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log timings and source locations to stderr")
}

// GetConfig returns the configuration loaded for the running command
func GetConfig() *config.Config {
	return cfg
}

// newLogger writes to stderr so stdout stays clean for results and MCP traffic
func newLogger(w io.Writer) *log.Logger {
	if !cfg.Logging.Verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, "readany: ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
}

func openEngine(cmd *cobra.Command, onProgress func(types.VectorizationStatus)) (*engine.Engine, error) {
	eng, err := engine.Open(cfg, engine.Options{
		Logger:     newLogger(cmd.ErrOrStderr()),
		OnProgress: onProgress,
	})
	if err != nil {
		return nil, err
	}
	return eng, nil
}
