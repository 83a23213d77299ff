package delivery

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// localSinkResult mirrors the Python original's _deliver_local return shape.
type localSinkResult struct {
	Path      string
	Timestamp string
}

// writeLocalSink writes content to a timestamped markdown file under
// outputDir/<jobID|"misc">/<YYYYMMDD_HHMMSS>.md with a metadata header
// (spec §4.H, ported from original_source/gateway/delivery.py's
// _deliver_local).
func writeLocalSink(outputDir, content, jobID, jobName string, metadata map[string]string) (localSinkResult, error) {
	now := time.Now()
	timestamp := now.Format("20060102_150405")

	subdir := "misc"
	if jobID != "" {
		subdir = jobID
	}
	dir := filepath.Join(outputDir, subdir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return localSinkResult{}, fmt.Errorf("create local sink directory: %w", err)
	}
	path := filepath.Join(dir, timestamp+".md")

	title := "Delivery Output"
	if jobName != "" {
		title = jobName
	}

	doc := fmt.Sprintf("# %s\n\n**Timestamp:** %s\n", title, now.Format("2006-01-02 15:04:05"))
	if jobID != "" {
		doc += fmt.Sprintf("**Job ID:** %s\n", jobID)
	}
	for k, v := range metadata {
		doc += fmt.Sprintf("**%s:** %s\n", k, v)
	}
	doc += "\n---\n\n" + content

	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		return localSinkResult{}, fmt.Errorf("write local sink file: %w", err)
	}
	return localSinkResult{Path: path, Timestamp: timestamp}, nil
}
