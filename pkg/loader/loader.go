// Package loader reads diagram source from files, stdin and Markdown.
package loader

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrNotFound is returned when no diagram source can be located.
var ErrNotFound = errors.New("no diagram source found")

// Stdin is the path that selects standard input.
const Stdin = "-"

// MaxSourceSize caps how much source is read (10MB).
const MaxSourceSize = 10 * 1024 * 1024

// Extensions recognized as diagram source files.
var Extensions = []string{".mmd", ".mermaid"}

// DefaultSource is shown when there is no file and nothing saved.
const DefaultSource = `flowchart TD
    A[🎨 Start Here] --> B{Choose Your Path}
    B -->|Design| C[Create Mockups]
    B -->|Develop| D[Write Code]
    B -->|Document| E[Draft Specs]
    C --> F[Review & Iterate]
    D --> F
    E --> F
    F --> G[🚀 Ship It!]

    style A fill:#2d2d2d,stroke:#d4a574,color:#e8e8e8
    style G fill:#2d2d2d,stroke:#4ade80,color:#e8e8e8
    style B fill:#2d2d2d,stroke:#d4a574,color:#e8e8e8`

// stdin is swapped out in tests.
var stdin io.Reader = os.Stdin

// LoadSource reads diagram source from path. "-" reads standard input and a
// Markdown file yields its first mermaid code block.
func LoadSource(path string) (string, error) {
	if path == Stdin {
		return LoadSourceFrom(stdin)
	}

	// Check if file exists
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return "", fmt.Errorf("%w at %s", ErrNotFound, path)
	}

	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open diagram file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		src, err := ExtractMarkdownBlock(file)
		if err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		return src, nil
	default:
		return LoadSourceFrom(file)
	}
}

// LoadSourceFrom reads all source from r, dropping a byte order mark and
// normalizing line endings.
func LoadSourceFrom(r io.Reader) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceSize+1))
	if err != nil {
		return "", fmt.Errorf("error reading diagram source: %w", err)
	}
	if len(data) > MaxSourceSize {
		return "", fmt.Errorf("diagram source exceeds %d bytes", MaxSourceSize)
	}
	return normalize(data), nil
}

func normalize(data []byte) string {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	return string(data)
}

// ExtractMarkdownBlock returns the body of the first ```mermaid fenced block.
func ExtractMarkdownBlock(r io.Reader) (string, error) {
	scanner := bufio.NewScanner(r)
	// Increase buffer size for long lines
	const maxCapacity = 1024 * 1024
	scanner.Buffer(make([]byte, 64*1024), maxCapacity)

	var block []string
	inBlock := false
	fence := ""
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		trimmed := strings.TrimSpace(line)
		if !inBlock {
			for _, f := range []string{"```", "~~~"} {
				if strings.HasPrefix(trimmed, f) && strings.TrimSpace(strings.TrimLeft(trimmed, f[:1])) == "mermaid" {
					inBlock, fence = true, f
				}
			}
			continue
		}
		if strings.HasPrefix(trimmed, fence) {
			return strings.Join(block, "\n"), nil
		}
		block = append(block, line)
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading markdown: %w", err)
	}
	if inBlock {
		return "", fmt.Errorf("unterminated mermaid block")
	}
	return "", fmt.Errorf("%w: no mermaid block", ErrNotFound)
}

// FindSource returns the diagram file in dir. With several candidates the
// alphabetically first one wins.
func FindSource(dir string) (string, error) {
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			return "", fmt.Errorf("failed to get current working directory: %w", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("read %s: %w", dir, err)
	}

	var found []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		for _, want := range Extensions {
			if ext == want {
				found = append(found, e.Name())
			}
		}
	}
	if len(found) == 0 {
		return "", fmt.Errorf("%w in %s", ErrNotFound, dir)
	}
	sort.Strings(found)
	return filepath.Join(dir, found[0]), nil
}
