package orchestrator

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// RunDoneScript shells out to cmd once the run is over, substituting
// {out_dir} with outDir's absolute path first. A blank cmd is a no-op.
// Every failure -- a bad shell, a nonzero exit, anything -- is reported to
// stderr and otherwise ignored; a broken completion hook must never turn a
// finished scrape into a failed one.
func RunDoneScript(cmd string, outDir string) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		return
	}

	absOutDir, err := filepath.Abs(outDir)
	if err != nil {
		absOutDir = outDir
	}
	resolved := strings.ReplaceAll(cmd, "{out_dir}", absOutDir)

	shellCmd := exec.Command("sh", "-c", resolved)
	shellCmd.Stdout = os.Stdout
	shellCmd.Stderr = os.Stderr
	if runErr := shellCmd.Run(); runErr != nil {
		fmt.Fprintf(os.Stderr, "done-script error: %v\n", runErr)
	}
}
