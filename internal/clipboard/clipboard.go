// Package clipboard copies rendered prompts to the system clipboard by
// shelling out to the platform utility (pbcopy, xclip/xsel/wl-copy, clip).
package clipboard

import (
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// linuxTools lists the utilities tried in order on Linux. X11 tools first,
// wl-copy for Wayland sessions.
var linuxTools = [][]string{
	{"xclip", "-selection", "clipboard"},
	{"xsel", "--clipboard", "--input"},
	{"wl-copy"},
}

// Copy writes text to the system clipboard.
func Copy(text string) error {
	switch runtime.GOOS {
	case "darwin":
		return pipe(text, "pbcopy")
	case "windows":
		return pipe(text, "cmd", "/c", "clip")
	case "linux":
		return copyLinux(text)
	}
	return fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
}

// Available reports whether a clipboard utility can be found.
func Available() bool {
	switch runtime.GOOS {
	case "darwin":
		return commandExists("pbcopy")
	case "windows":
		return true
	case "linux":
		for _, tool := range linuxTools {
			if commandExists(tool[0]) {
				return true
			}
		}
	}
	return false
}

func copyLinux(text string) error {
	var lastErr error
	for _, tool := range linuxTools {
		if !commandExists(tool[0]) {
			continue
		}
		if err := pipe(text, tool[0], tool[1:]...); err != nil {
			lastErr = fmt.Errorf("%s failed: %w", tool[0], err)
			continue
		}
		return nil
	}
	if lastErr != nil {
		return lastErr
	}
	return fmt.Errorf("no clipboard utility found (install xclip, xsel or wl-clipboard)")
}

func pipe(text, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdin = strings.NewReader(text)
	return cmd.Run()
}

func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
