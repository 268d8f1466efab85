package diagnostics

import (
	"os/exec"
	"strings"

	"github.com/hugo-lorenzo-mato/critic/internal/reviewer"
)

// ReviewerCheck is the PATH lookup result for one reviewer binary.
type ReviewerCheck struct {
	Key    string `json:"key"`
	Name   string `json:"name"`
	Binary string `json:"binary"`
	Path   string `json:"path,omitempty"`
	Found  bool   `json:"found"`
}

// CheckReviewers resolves each reviewer's binary, the first word of
// its command line, against PATH.
func CheckReviewers(configs []reviewer.Config) []ReviewerCheck {
	checks := make([]ReviewerCheck, 0, len(configs))
	for _, cfg := range configs {
		check := ReviewerCheck{Key: cfg.Key, Name: cfg.Name}
		if fields := strings.Fields(cfg.Command); len(fields) > 0 {
			check.Binary = fields[0]
			if path, err := exec.LookPath(check.Binary); err == nil {
				check.Path = path
				check.Found = true
			}
		}
		checks = append(checks, check)
	}
	return checks
}
