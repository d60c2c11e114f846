package chrome

import (
	"os"
	"os/exec"
	"runtime"
	"strings"
)

var pathBinaries = []string{"google-chrome", "google-chrome-stable", "chromium-browser", "chromium"}

func candidatePaths(goos string) []string {
	switch goos {
	case "linux":
		return []string{
			"/usr/bin/google-chrome-stable",
			"/usr/bin/google-chrome",
			"/usr/bin/chromium-browser",
			"/usr/bin/chromium",
			"/snap/bin/chromium",
			"/opt/google/chrome/google-chrome",
		}
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
		}
	}
	return nil
}

// ResolveExecPath picks the browser binary for an exec allocator. A configured
// path wins when it exists. An empty result lets chromedp use its own lookup.
func ResolveExecPath(configured string) string {
	if configured != "" {
		if _, err := os.Stat(configured); err == nil {
			return configured
		}
	}
	if p := GetChromePath(); p != "" {
		return p
	}
	return GetFlatpakChromePath()
}

// GetChromePath returns the first installed Chrome or Chromium binary.
func GetChromePath() string {
	for _, path := range candidatePaths(runtime.GOOS) {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	for _, bin := range pathBinaries {
		if path, err := exec.LookPath(bin); err == nil {
			return path
		}
	}
	return ""
}

// GetFlatpakChromePath returns the flatpak wrapper script when Chrome is installed via flatpak.
func GetFlatpakChromePath() string {
	if !isFlatpakChromeAvailable() {
		return ""
	}
	wrapperPath := "./scripts/chrome-flatpak-wrapper.sh"
	if _, err := os.Stat(wrapperPath); err == nil {
		return wrapperPath
	}
	return ""
}

func isFlatpakChromeAvailable() bool {
	if _, err := exec.LookPath("flatpak"); err != nil {
		return false
	}
	output, err := exec.Command("flatpak", "list", "--app", "--columns=application").Output()
	if err != nil {
		return false
	}
	apps := string(output)
	return strings.Contains(apps, "com.google.Chrome") || strings.Contains(apps, "org.chromium.Chromium")
}
