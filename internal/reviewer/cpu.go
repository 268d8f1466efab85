package reviewer

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// cpuSeconds samples total user+system CPU time consumed by a single
// process. The bool is false when the process is gone or unreadable.
func cpuSeconds(pid int) (float64, bool) {
	proc, err := process.NewProcess(int32(pid))
	if err != nil {
		return 0, false
	}
	times, err := proc.Times()
	if err != nil {
		return 0, false
	}
	return times.User + times.System, true
}

// treeCPUSeconds sums CPU time across the whole process tree rooted at
// pid. Agent CLIs usually do their real work in child processes, so
// the root alone can look idle while the tree is busy. Children come
// from /proc; where that is unavailable the sum degrades to the root.
func treeCPUSeconds(pid int) (float64, bool) {
	seen := make(map[int]bool)
	queue := []int{pid}
	total := 0.0
	sampled := false
	for len(queue) > 0 {
		cur := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		if seen[cur] {
			continue
		}
		seen[cur] = true

		if secs, ok := cpuSeconds(cur); ok {
			total += secs
			sampled = true
		}
		for _, child := range procChildren(cur) {
			if !seen[child] {
				queue = append(queue, child)
			}
		}
	}
	return total, sampled
}

// procChildren reads direct child PIDs from
// /proc/<pid>/task/<pid>/children (Linux only; empty elsewhere).
func procChildren(pid int) []int {
	raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/task/%d/children", pid, pid))
	if err != nil {
		return nil
	}
	fields := strings.Fields(string(raw))
	children := make([]int, 0, len(fields))
	for _, field := range fields {
		if child, err := strconv.Atoi(field); err == nil {
			children = append(children, child)
		}
	}
	return children
}
