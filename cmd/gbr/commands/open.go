package commands

import (
	"fmt"
	"os/exec"
	"path/filepath"
	"runtime"
)

// openFile opens a written report in the default viewer
func openFile(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", abs)
	case "linux":
		cmd = exec.Command("xdg-open", abs)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", abs)
	default:
		return fmt.Errorf("unsupported platform")
	}

	return cmd.Start()
}
