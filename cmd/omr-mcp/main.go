package main

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/ironsheep/omr-reader/internal/classify"
	"github.com/ironsheep/omr-reader/internal/pipeline"
	"github.com/ironsheep/omr-reader/internal/server"
)

// Version information - set by ldflags during build
var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	// Handle --version and -v flags
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "--version", "-v", "version":
			fmt.Printf("omr-reader-mcp %s\n", Version)
			fmt.Printf("  Build time: %s\n", BuildTime)
			fmt.Printf("  Git commit: %s\n", GitCommit)
			return
		case "--help", "-h", "help":
			fmt.Println("omr-reader-mcp - MCP server for reading bubble answer sheets")
			fmt.Println()
			fmt.Println("Usage: omr-reader-mcp [options]")
			fmt.Println()
			fmt.Println("Options:")
			fmt.Println("  --version, -v    Print version information")
			fmt.Println("  --help, -h       Print this help message")
			fmt.Println()
			fmt.Println("Environment variables:")
			fmt.Println("  OMR_LOG_LEVEL=debug          Enable debug logging")
			fmt.Println("  OMR_MODEL_PATH=<file>        Fill classifier model (heuristic when unset)")
			fmt.Println("  OMR_MODEL_WORKER=<command>   Model worker command (default: omr-model-worker)")
			fmt.Println()
			fmt.Println("This server communicates via MCP protocol over stdin/stdout.")
			fmt.Println("Configure it in your MCP client (e.g., Claude Desktop).")
			return
		}
	}

	// Configure logging to stderr (stdout is for MCP protocol)
	log.SetOutput(os.Stderr)
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg := pipeline.DefaultConfig()
	cfg.Debug = os.Getenv("OMR_LOG_LEVEL") == "debug"
	if cfg.Debug {
		log.Printf("OMR MCP Server v%s (built %s, commit %s)", Version, BuildTime, GitCommit)
	}

	if modelPath := os.Getenv("OMR_MODEL_PATH"); modelPath != "" {
		worker := strings.Fields(os.Getenv("OMR_MODEL_WORKER"))
		if len(worker) == 0 {
			worker = []string{classify.DefaultWorkerCommand}
		}
		cfg.Classifier = classify.Options{ModelPath: modelPath, WorkerCommand: worker}
	}

	p := pipeline.New(cfg)
	defer p.Close()

	server.Version = Version
	srv := server.New(p)
	if err := srv.Run(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
