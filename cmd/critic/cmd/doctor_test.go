package cmd

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hugo-lorenzo-mato/critic/internal/diagnostics"
)

func TestPrintHostReport(t *testing.T) {
	var buf bytes.Buffer
	printHostReport(&buf, diagnostics.HostReport{
		CPUModel:    "Test CPU",
		CPUCores:    4,
		CPUThreads:  8,
		CPUPercent:  12.5,
		MemTotalMB:  16384,
		MemUsedMB:   8192,
		MemPercent:  50,
		DiskTotalGB: 512,
		DiskUsedGB:  256,
		DiskPercent: 50,
		LoadAvg1:    1.5,
		LoadAvg5:    1.25,
		LoadAvg15:   1,
		GPUs:        []string{"Test GPU 3000"},
	})

	out := buf.String()
	assert.Contains(t, out, "Test CPU (4 cores, 8 threads), 12.5% busy")
	assert.Contains(t, out, "8192 MB used / 16384 MB total (50.0%)")
	assert.Contains(t, out, "256 GB used / 512 GB total (50.0%)")
	assert.Contains(t, out, "Load:   1.50 1.25 1.00")
	assert.Contains(t, out, "GPU:    Test GPU 3000")
}
