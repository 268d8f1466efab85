// Package diagnostics gathers the facts behind the doctor command:
// whether each reviewer binary resolves on PATH and, on request, a
// snapshot of host resources.
package diagnostics

import (
	"fmt"
	"os"
	"runtime"
	"strings"
	"sync"

	"github.com/jaypipes/ghw"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

// HostReport is a point-in-time view of host resources.
type HostReport struct {
	CPUModel   string  `json:"cpu_model"`
	CPUCores   int     `json:"cpu_cores"`
	CPUThreads int     `json:"cpu_threads"`
	CPUPercent float64 `json:"cpu_percent"`

	MemTotalMB float64 `json:"mem_total_mb"`
	MemUsedMB  float64 `json:"mem_used_mb"`
	MemPercent float64 `json:"mem_percent"`

	DiskTotalGB float64 `json:"disk_total_gb"`
	DiskUsedGB  float64 `json:"disk_used_gb"`
	DiskPercent float64 `json:"disk_percent"`

	LoadAvg1  float64 `json:"load_avg_1"`
	LoadAvg5  float64 `json:"load_avg_5"`
	LoadAvg15 float64 `json:"load_avg_15"`

	GPUs []string `json:"gpus,omitempty"`
}

// HostCollector samples host resources. CPU utilization is computed
// from the delta between consecutive Collect calls, so the first
// sample reports it as zero.
type HostCollector struct {
	mu           sync.Mutex
	lastCPUTotal float64
	lastCPUIdle  float64

	infoCollected bool
	cpuModel      string
	cpuCores      int
	cpuThreads    int
	gpus          []string
}

// NewHostCollector creates a host resource collector.
func NewHostCollector() *HostCollector {
	return &HostCollector{}
}

// Collect gathers the current host snapshot. Every probe is
// best-effort; fields stay zero where the platform has no answer.
func (c *HostCollector) Collect() HostReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := HostReport{}
	c.collectHardwareInfo(&report)
	c.collectCPU(&report)
	c.collectMemory(&report)
	c.collectDisk(&report)
	c.collectLoadAvg(&report)
	return report
}

// collectHardwareInfo fills the static inventory, gathered once and
// cached for later samples.
func (c *HostCollector) collectHardwareInfo(report *HostReport) {
	if !c.infoCollected {
		if infos, err := cpu.Info(); err == nil && len(infos) > 0 {
			c.cpuModel = strings.TrimSpace(infos[0].ModelName)
		}
		if cores, err := cpu.Counts(false); err == nil && cores > 0 {
			c.cpuCores = cores
		}
		if threads, err := cpu.Counts(true); err == nil && threads > 0 {
			c.cpuThreads = threads
		}
		c.gpus = gpuNames()
		c.infoCollected = true
	}
	report.CPUModel = c.cpuModel
	report.CPUCores = c.cpuCores
	report.CPUThreads = c.cpuThreads
	report.GPUs = append([]string(nil), c.gpus...)
}

func (c *HostCollector) collectCPU(report *HostReport) {
	times, err := cpu.Times(false)
	if err != nil || len(times) == 0 {
		return
	}

	t := times[0]
	total := t.User + t.Nice + t.System + t.Idle + t.Iowait + t.Irq + t.Softirq + t.Steal
	idle := t.Idle + t.Iowait

	if c.lastCPUTotal > 0 {
		totalDelta := total - c.lastCPUTotal
		idleDelta := idle - c.lastCPUIdle
		if totalDelta > 0 {
			report.CPUPercent = (1 - idleDelta/totalDelta) * 100
		}
	}

	c.lastCPUTotal = total
	c.lastCPUIdle = idle
}

func (c *HostCollector) collectMemory(report *HostReport) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return
	}
	report.MemTotalMB = float64(vm.Total) / 1024 / 1024
	report.MemUsedMB = float64(vm.Used) / 1024 / 1024
	report.MemPercent = vm.UsedPercent
}

func (c *HostCollector) collectDisk(report *HostReport) {
	usage, err := disk.Usage(rootDiskPath())
	if err != nil {
		return
	}
	report.DiskTotalGB = float64(usage.Total) / 1024 / 1024 / 1024
	report.DiskUsedGB = float64(usage.Used) / 1024 / 1024 / 1024
	report.DiskPercent = usage.UsedPercent
}

func (c *HostCollector) collectLoadAvg(report *HostReport) {
	avg, err := load.Avg()
	if err != nil {
		return
	}
	report.LoadAvg1 = avg.Load1
	report.LoadAvg5 = avg.Load5
	report.LoadAvg15 = avg.Load15
}

// gpuNames lists the graphics cards ghw can see. The doctor report
// only needs an inventory, not utilization.
func gpuNames() []string {
	info, err := ghw.GPU()
	if err != nil || info == nil {
		return nil
	}
	names := make([]string, 0, len(info.GraphicsCards))
	for _, card := range info.GraphicsCards {
		name := ""
		if card.DeviceInfo != nil {
			switch {
			case card.DeviceInfo.Vendor != nil && card.DeviceInfo.Product != nil:
				name = strings.TrimSpace(card.DeviceInfo.Vendor.Name + " " + card.DeviceInfo.Product.Name)
			case card.DeviceInfo.Product != nil:
				name = strings.TrimSpace(card.DeviceInfo.Product.Name)
			case card.DeviceInfo.Vendor != nil:
				name = strings.TrimSpace(card.DeviceInfo.Vendor.Name)
			}
		}
		if name == "" {
			name = fmt.Sprintf("GPU %d", card.Index)
		}
		names = append(names, name)
	}
	return names
}

func rootDiskPath() string {
	if runtime.GOOS == "windows" {
		drive := os.Getenv("SystemDrive")
		if drive == "" {
			drive = "C:"
		}
		return drive + "\\"
	}
	return "/"
}
