package main

import (
	"fmt"
	"github.com/joho/godotenv"
	"github.com/myrjola/fsvalidator/cmd/cli/checklist"
	"github.com/myrjola/fsvalidator/cmd/cli/document"
	"github.com/myrjola/fsvalidator/internal/errors"
	"github.com/spf13/cobra"
	"io/fs"
	"os"
)

func init() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	rootCmd.AddGroup(checklist.Group)
	rootCmd.AddCommand(checklist.List)
	rootCmd.AddGroup(document.Group)
	rootCmd.AddCommand(document.Extract)
	rootCmd.AddCommand(document.Ask)
}

var rootCmd = &cobra.Command{
	Use:          "fsv-cli",
	Long:         `Command line utilities for the Financial Statement Validator`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func main() {
	Execute()
}
