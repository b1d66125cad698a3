package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ReleaseURL is the endpoint describing the latest published release.
var ReleaseURL = "https://api.github.com/repos/Dicklesworthstone/diagram_viewer/releases/latest"

type Release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// CheckForUpdates queries GitHub for the latest release.
// Returns the new version tag and its page if it is newer than current,
// empty strings otherwise.
func CheckForUpdates(ctx context.Context, current string) (string, string, error) {
	// Short timeout so a slow network never holds up startup
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ReleaseURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("github api returned status: %s", resp.Status)
	}

	var rel Release
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", "", err
	}

	if compareVersions(rel.TagName, current) > 0 {
		return rel.TagName, rel.HTMLURL, nil
	}
	return "", "", nil
}

// compareVersions returns 1 if v1 > v2, -1 if v1 < v2, 0 if equal.
// Segments compare numerically, so 0.10.0 is newer than 0.9.1. A
// pre-release suffix sorts before the plain release.
func compareVersions(v1, v2 string) int {
	core1, pre1, _ := strings.Cut(strings.TrimPrefix(v1, "v"), "-")
	core2, pre2, _ := strings.Cut(strings.TrimPrefix(v2, "v"), "-")

	s1, s2 := strings.Split(core1, "."), strings.Split(core2, ".")
	for i := 0; i < max(len(s1), len(s2)); i++ {
		a, b := segment(s1, i), segment(s2, i)
		switch {
		case a > b:
			return 1
		case a < b:
			return -1
		}
	}

	switch {
	case pre1 == pre2:
		return 0
	case pre1 == "":
		return 1
	case pre2 == "":
		return -1
	case pre1 > pre2:
		return 1
	default:
		return -1
	}
}

func segment(parts []string, i int) int {
	if i >= len(parts) {
		return 0
	}
	n, err := strconv.Atoi(parts[i])
	if err != nil {
		return 0
	}
	return n
}
