package main

import (
	"context"
	"os"

	"github.com/sha1n/dupefinder/internal/app"
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "dupefinder"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	return newRootCommand(version, programName, app.DefaultRunParams(), args).Execute()
}

func newRootCommand(version, programName string, params app.RunParams, args []string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          programName,
		Short:        "Duplicate business record finder",
		Long:         "Finds candidate duplicate business records by tax id, phone number, name proximity and address",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.SetVersionTemplate(`{{.Version}}
`)

	findCmd := &cobra.Command{
		Use:   "find-duplicates",
		Short: "Report candidate duplicate records and write the JSON export",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunFindDuplicates(cmd.Context(), params, cmd.Flags(), version)
		},
	}
	app.RegisterFindFlags(findCmd.Flags())

	invalidateCmd := &cobra.Command{
		Use:   "invalidate-cache",
		Short: "Delete the cached index so the next run rescans the record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunInvalidateCache(cmd.Context(), params, cmd.Flags())
		},
	}
	app.RegisterInvalidateFlags(invalidateCmd.Flags())

	importCmd := &cobra.Command{
		Use:   "import",
		Short: "Load a JSON array of records into the SQL record store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			from, err := cmd.Flags().GetString("from")
			if err != nil {
				return err
			}
			return app.RunImport(cmd.Context(), params, cmd.Flags(), from)
		},
	}
	app.RegisterImportFlags(importCmd.Flags())

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Expose duplicate detection and record search as MCP tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.RunServe(cmd.Context(), params, cmd.Flags(), version)
		},
	}
	app.RegisterServeFlags(serveCmd.Flags())

	rootCmd.AddCommand(findCmd, invalidateCmd, importCmd, serveCmd)
	rootCmd.SetArgs(args)
	rootCmd.SetContext(context.Background())

	return rootCmd
}
