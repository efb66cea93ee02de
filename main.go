package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dpshade/prompt-catalog/internal/api"
	"github.com/dpshade/prompt-catalog/internal/cli"
	"github.com/dpshade/prompt-catalog/internal/config"
	apperrors "github.com/dpshade/prompt-catalog/internal/errors"
	"github.com/dpshade/prompt-catalog/internal/service"
)

var version = "0.1.0"

func printHelp() {
	fmt.Printf(`prompt-catalog - Local-first prompt template catalog

USAGE:
    prompt-catalog [OPTIONS] [COMMAND]

OPTIONS:
    --help          Show this help information
    --version       Print version information
    --init          Initialize the catalog directory
    --serve         Start the HTTP API server
    --port          Port for the API server (default: 8080)
    --dir           Catalog directory (overrides PROMPT_CATALOG_DIR)

COMMANDS:
    (no command)       Show help
    list, ls           List templates
    search <query>     Search templates
    get, show <id>     Show a specific template
    create, new <name> Create a new template
    edit <id>          Edit an existing template
    delete, rm <id>    Delete a template
    duplicate <id>     Duplicate a template
    render <id>        Render a template with variables
    import <file>      Import and merge CSV/JSON/YAML records
    export [id]        Export the catalog or one template
    tags               List all tags
    versions <id>      List version snapshots
    help               Show CLI command help

EXAMPLES:
    prompt-catalog --init                            # Create the catalog directory
    prompt-catalog --serve --port 9000               # Start API server on port 9000
    prompt-catalog list --format table               # List templates in table format
    prompt-catalog search "launch email"             # Fuzzy search
    prompt-catalog create "Launch Email" --tags email,launch
    prompt-catalog render launch-email --var product=Foo
    prompt-catalog import prompts.csv                # Merge records by slug
    prompt-catalog export --format yaml -o backup.yaml

STORAGE:
    Default directory: ~/.prompt-catalog
    Override with: PROMPT_CATALOG_DIR=<path>
`)
}

func main() {
	var showVersion bool
	var initLib bool
	var showHelp bool
	var serve bool
	var port int
	var dir string

	flag.BoolVar(&showVersion, "version", false, "Print version information")
	flag.BoolVar(&initLib, "init", false, "Initialize the catalog directory")
	flag.BoolVar(&showHelp, "help", false, "Show help information")
	flag.BoolVar(&serve, "serve", false, "Start the HTTP API server")
	flag.IntVar(&port, "port", 0, "Port for the API server")
	flag.StringVar(&dir, "dir", "", "Catalog directory")
	flag.Parse()

	if showHelp {
		printHelp()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("prompt-catalog version %s\n", version)
		os.Exit(0)
	}

	cfg := config.Load()
	if dir != "" {
		cfg.RootDir = dir
	}
	if port != 0 {
		cfg.Port = port
	}

	svc, err := service.NewService(cfg.RootDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if initLib {
		if err := svc.InitLibrary(); err != nil {
			fmt.Fprintf(os.Stderr, "Error initializing catalog: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Initialized prompt catalog at %s\n", svc.BaseDir())
		return
	}

	if serve {
		srv := api.NewAPIServer(svc, cfg.Port)

		// Shut down cleanly on Ctrl-C or SIGTERM
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			<-sigCh
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			srv.Stop(ctx)
		}()

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "Error starting API server: %v\n", err)
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) > 0 {
		cliHandler := cli.NewCLI(svc)
		if err := cliHandler.ExecuteCommand(args); err != nil {
			errHandler := apperrors.NewCLIErrorHandler(false)
			fmt.Fprintln(os.Stderr, errHandler.FormatError(err))
			os.Exit(1)
		}
		return
	}

	printHelp()
}
