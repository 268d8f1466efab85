package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/hugo-lorenzo-mato/critic/internal/diagnostics"
	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check reviewer CLIs and configuration",
	Long: `Verify that reviewer CLIs are installed and the configuration is
valid. With --system, also report host CPU, memory, disk, load and GPU
inventory; long reviewer runs compete for these.`,
	RunE: runDoctor,
}

var doctorSystem bool

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorSystem, "system", false, "Include a host resource report")
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()

	cfg, cfgErr := loadConfig()

	var configs []reviewer.Config
	if cfg != nil {
		if reg, err := newRegistry(cfg); err == nil {
			configs = reg.All()
		} else if cfgErr == nil {
			cfgErr = err
		}
	}
	if len(configs) == 0 {
		// Fall back to built-ins so a broken config still gets a CLI report.
		if reg, err := reviewer.NewRegistry(); err == nil {
			configs = reg.All()
		}
	}

	fmt.Fprintln(out, "Checking reviewer CLIs...")
	fmt.Fprintln(out)

	found := 0
	for _, check := range diagnostics.CheckReviewers(configs) {
		if check.Found {
			found++
			fmt.Fprintf(out, "  ✓ %-12s %-16s %s\n", check.Key, check.Name, check.Path)
		} else {
			fmt.Fprintf(out, "  ✗ %-12s %-16s not found\n", check.Key, check.Name)
		}
	}
	fmt.Fprintln(out)

	fmt.Fprintln(out, "Validating configuration...")
	fmt.Fprintln(out)
	if cfgErr != nil {
		fmt.Fprintf(out, "  ✗ %v\n", cfgErr)
	} else {
		fmt.Fprintln(out, "  ✓ Configuration valid")
	}
	fmt.Fprintln(out)

	if doctorSystem {
		printHostReport(out, collectHostReport())
	}

	switch {
	case cfgErr != nil:
		return fmt.Errorf("configuration check failed")
	case found == 0:
		return fmt.Errorf("no reviewer CLIs found in PATH")
	case found < len(configs):
		fmt.Fprintln(out, "Some reviewer CLIs are missing; their presets cannot run.")
	default:
		fmt.Fprintln(out, "All reviewer CLIs available.")
	}
	return nil
}

// collectHostReport samples twice so CPU utilization has a delta to
// work from.
func collectHostReport() diagnostics.HostReport {
	collector := diagnostics.NewHostCollector()
	collector.Collect()
	time.Sleep(500 * time.Millisecond)
	return collector.Collect()
}

func printHostReport(out io.Writer, report diagnostics.HostReport) {
	fmt.Fprintln(out, "System resources:")
	fmt.Fprintf(out, "  CPU:    %s (%d cores, %d threads), %.1f%% busy\n",
		report.CPUModel, report.CPUCores, report.CPUThreads, report.CPUPercent)
	fmt.Fprintf(out, "  Memory: %.0f MB used / %.0f MB total (%.1f%%)\n",
		report.MemUsedMB, report.MemTotalMB, report.MemPercent)
	fmt.Fprintf(out, "  Disk:   %.0f GB used / %.0f GB total (%.1f%%)\n",
		report.DiskUsedGB, report.DiskTotalGB, report.DiskPercent)
	fmt.Fprintf(out, "  Load:   %.2f %.2f %.2f\n",
		report.LoadAvg1, report.LoadAvg5, report.LoadAvg15)
	for _, gpu := range report.GPUs {
		fmt.Fprintf(out, "  GPU:    %s\n", gpu)
	}
	fmt.Fprintln(out)
}
