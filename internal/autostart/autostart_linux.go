package autostart

import (
	"fmt"
	"os"
	"path/filepath"
)

// entryPath follows the XDG autostart convention.
func entryPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "autostart", "spk-agent.desktop"), nil
}

func entryContent(exe string) []byte {
	return []byte(fmt.Sprintf(`[Desktop Entry]
Type=Application
Name=SPK Agent
Comment=SPK storage node supervisor
Exec=%s serve
Hidden=false
NoDisplay=false
X-GNOME-Autostart-enabled=true
`, exe))
}
