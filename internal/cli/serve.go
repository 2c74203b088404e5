package cli

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/codedogQBY/ReadAny/internal/engine"
	"github.com/codedogQBY/ReadAny/internal/mcp"
	"github.com/codedogQBY/ReadAny/internal/storage"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP server on stdio",
	Long: `Starts a Model Context Protocol server on stdin/stdout exposing the
vectorize_document, cancel_vectorization, get_vectorization_status,
search_document, delete_document and list_documents tools.

Logs are written to stderr; stdout carries protocol messages only.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	// The server always logs; stdout is reserved for the protocol
	logger := log.New(cmd.ErrOrStderr(), "", log.LstdFlags)
	if cfg.Logging.Verbose {
		logger.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	logger.Printf("ReadAny MCP Server v%s starting...", version)
	logger.Printf("Build Mode: %s, Driver: %s", storage.BuildMode, storage.DriverName)

	eng, err := engine.Open(cfg, engine.Options{Logger: logger})
	if err != nil {
		return err
	}
	server := mcp.FromEngine(eng, cfg.Search)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		logger.Println("MCP server ready, listening on stdio...")
		errChan <- server.Serve(ctx)
	}()

	select {
	case sig := <-sigChan:
		logger.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
		if err := server.Close(); err != nil {
			logger.Printf("Shutdown error: %v", err)
		}
	case err := <-errChan:
		if err != nil {
			return err
		}
	}

	logger.Println("Server stopped")
	return nil
}
