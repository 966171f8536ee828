package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dipievil/drone-ci-ex-helper/pkg/cli"
	"github.com/dipievil/drone-ci-ex-helper/pkg/console"
	"github.com/dipievil/drone-ci-ex-helper/pkg/constants"
	"github.com/dipievil/drone-ci-ex-helper/pkg/lsp"
	"github.com/dipievil/drone-ci-ex-helper/pkg/schema"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"
)

// Build-time variables set by GoReleaser
var (
	version = "dev"
)

// Global flags
var (
	verbose      bool
	settingsPath string
)

var rootCmd = &cobra.Command{
	Use:   constants.CLIName,
	Short: "Validation and editor support for Drone CI pipeline files",
	Long: `Validation and editor support for Drone CI pipeline files.

The language server validates .drone.yml files while you type, offers completion
and hover for top-level keys, and places every schema error on the YAML node it
belongs to. The same engine is available from the command line and as MCP tools.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		// serve configures logging itself
		if cmd == serveCmd {
			return
		}
		verbosity := -1
		if verbose {
			verbosity = 1
		}
		commonlog.Configure(verbosity, nil)
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the language server over stdio or TCP",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		address, _ := cmd.Flags().GetString("tcp")
		logFile, _ := cmd.Flags().GetString("log-file")
		debug, _ := cmd.Flags().GetBool("debug")

		verbosity := 0
		if debug {
			verbosity = 2
		}
		var path *string
		if logFile != "" {
			path = &logFile
		}
		commonlog.Configure(verbosity, path)

		store := schema.NewStore(schema.Options{Source: schema.SourceBundled})
		server := lsp.NewServer(store, version)

		var err error
		if address != "" {
			err = server.RunTCP(address, debug)
		} else {
			err = server.RunStdio(debug)
		}
		if err != nil {
			fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
			os.Exit(1)
		}
	},
}

var validateCmd = &cobra.Command{
	Use:   "validate [file]...",
	Short: "Validate pipeline files against the Drone CI schema",
	Long: `Validate pipeline files against the Drone CI schema.

Without arguments .drone.yml (or .drone.yaml) in the current directory is validated.
The exit code is 1 when any problem is found.

Examples:
  ` + constants.CLIName + ` validate
  ` + constants.CLIName + ` validate ci/.drone.yml --format json
  ` + constants.CLIName + ` validate --watch`,
	Run: func(cmd *cobra.Command, args []string) {
		format, _ := cmd.Flags().GetString("format")
		watch, _ := cmd.Flags().GetBool("watch")
		jobs, _ := cmd.Flags().GetInt("jobs")

		files, err := cli.ResolveFiles(args)
		if err != nil {
			exitWithError(err)
		}
		settings, err := cli.LoadSettingsFile(settingsPath)
		if err != nil {
			exitWithError(err)
		}
		store, err := cli.LoadSchema(settings, verbose)
		if err != nil {
			exitWithError(err)
		}

		opts := cli.ValidateOptions{
			Files:    files,
			Format:   format,
			Settings: settings,
			Jobs:     jobs,
			Verbose:  verbose,
		}

		if watch {
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if err := cli.WatchFiles(ctx, store, opts, os.Stdout); err != nil {
				exitWithError(err)
			}
			return
		}

		if _, err := cli.ValidateFiles(store, opts, os.Stdout); err != nil {
			if errors.Is(err, cli.ErrProblemsFound) {
				os.Exit(1)
			}
			exitWithError(err)
		}
	},
}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Inspect or update the pipeline schema",
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

var schemaUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the latest schema into a directory usable as schemaDir",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		url, _ := cmd.Flags().GetString("url")
		dir, _ := cmd.Flags().GetString("dir")

		if dir == "" {
			settings, err := cli.LoadSettingsFile(settingsPath)
			if err != nil {
				exitWithError(err)
			}
			dir = settings.SchemaDir
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := cli.UpdateSchema(ctx, cli.UpdateOptions{URL: url, Dir: dir, Verbose: verbose}, os.Stdout); err != nil {
			exitWithError(err)
		}
	},
}

var schemaPropertiesCmd = &cobra.Command{
	Use:   "properties",
	Short: "List the top-level pipeline keys the schema knows",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := loadStore()
		if err := cli.ListSchemaProperties(store, os.Stdout); err != nil {
			exitWithError(err)
		}
	},
}

var locateCmd = &cobra.Command{
	Use:   "locate <file> <error-json>",
	Short: "Show where a validator error points in a pipeline file",
	Long: `Show where a validator error points in a pipeline file.

The error is a JSON object with an instance path and optional metadata. Pass - to
read it from stdin.

Examples:
  ` + constants.CLIName + ` locate .drone.yml '{"instancePath": "/steps/0/image", "meta": {"kind": "type"}}'`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		errorJSON := []byte(args[1])
		if args[1] == "-" {
			data, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitWithError(err)
			}
			errorJSON = data
		}
		if err := cli.LocateError(args[0], errorJSON, os.Stdout); err != nil {
			exitWithError(err)
		}
	},
}

var mcpServerCmd = &cobra.Command{
	Use:   "mcp-server",
	Short: "Serve pipeline validation as MCP tools over stdio",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		store := loadStore()
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := cli.RunMCPServer(ctx, store); err != nil && !errors.Is(err, context.Canceled) {
			exitWithError(err)
		}
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(console.FormatInfoMessage(fmt.Sprintf("%s version %s", constants.CLIName, version)))
	},
}

func loadStore() *schema.Store {
	settings, err := cli.LoadSettingsFile(settingsPath)
	if err != nil {
		exitWithError(err)
	}
	store, err := cli.LoadSchema(settings, verbose)
	if err != nil {
		exitWithError(err)
	}
	return store
}

func exitWithError(err error) {
	fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
	os.Exit(1)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output showing detailed information")
	rootCmd.PersistentFlags().StringVarP(&settingsPath, "config", "c", "", "Settings file (default "+constants.SettingsFileName+" when present)")

	serveCmd.Flags().String("tcp", "", "Listen on this TCP address instead of stdio")
	serveCmd.Flags().String("log-file", "", "Write logs to this file instead of stderr")
	serveCmd.Flags().Bool("debug", false, "Log protocol traffic and debug messages")

	validateCmd.Flags().StringP("format", "f", cli.FormatText, "Output format: text or json")
	validateCmd.Flags().BoolP("watch", "w", false, "Validate again whenever a file changes")
	validateCmd.Flags().IntP("jobs", "j", 0, "Files validated in parallel (default: number of CPUs)")

	schemaUpdateCmd.Flags().String("url", schema.DefaultURL, "Schema to download")
	schemaUpdateCmd.Flags().String("dir", "", "Output directory (default: schemaDir from the settings file)")

	schemaCmd.AddCommand(schemaUpdateCmd)
	schemaCmd.AddCommand(schemaPropertiesCmd)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(locateCmd)
	rootCmd.AddCommand(mcpServerCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	cli.SetVersionInfo(version)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, console.FormatErrorMessage(err.Error()))
		os.Exit(1)
	}
}
