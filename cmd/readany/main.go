package main

import (
	"log"
	"os"

	"github.com/codedogQBY/ReadAny/internal/cli"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	// stdout is reserved for command output and the MCP protocol
	log.SetOutput(os.Stderr)
	cli.Execute(version, buildTime)
}
