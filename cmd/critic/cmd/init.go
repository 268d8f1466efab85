package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter configuration file",
	Long: `Write a commented .critic.yaml with every setting at its default
into the current directory.`,
	RunE: runInit,
}

var initForce bool

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite existing configuration")
}

func runInit(cmd *cobra.Command, _ []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	configPath := filepath.Join(cwd, ".critic.yaml")
	if _, err := os.Stat(configPath); err == nil && !initForce {
		return fmt.Errorf("configuration already exists, use --force to overwrite")
	}

	if err := os.WriteFile(configPath, []byte(config.DefaultConfigYAML), 0o644); err != nil { //nolint:gosec // Config file needs to be readable
		return fmt.Errorf("writing config: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Initialized critic in", cwd)
	fmt.Fprintln(out, "Configuration file: .critic.yaml")
	fmt.Fprintln(out, "Run 'critic doctor' to verify reviewer CLIs")

	return nil
}
