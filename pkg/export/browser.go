package export

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand is swapped out in tests.
var openCommand = func(name string, args ...string) error {
	return exec.Command(name, args...).Start()
}

// OpenInBrowser opens url in the platform's default browser.
func OpenInBrowser(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return openCommand("open", url)
	case "windows":
		return openCommand("rundll32", "url.dll,FileProtocolHandler", url)
	case "linux", "freebsd", "openbsd", "netbsd":
		return openCommand("xdg-open", url)
	default:
		return fmt.Errorf("don't know how to open a browser on %s", runtime.GOOS)
	}
}
