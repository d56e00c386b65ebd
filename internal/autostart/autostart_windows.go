package autostart

import (
	"fmt"
	"os"
	"path/filepath"
)

// entryPath drops a launcher into the per-user Startup folder, which needs no
// registry access or elevation.
func entryPath() (string, error) {
	appData := os.Getenv("APPDATA")
	if appData == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		appData = filepath.Join(home, "AppData", "Roaming")
	}
	return filepath.Join(appData,
		"Microsoft", "Windows", "Start Menu", "Programs", "Startup", "spk-agent.cmd"), nil
}

func entryContent(exe string) []byte {
	return []byte(fmt.Sprintf("@echo off\r\nstart \"\" \"%s\" serve\r\n", exe))
}
