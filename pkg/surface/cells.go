package surface

import (
	"fmt"
	"image"
	"image/color"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// UpperHalf is drawn with the upper pixel as foreground and the lower pixel
// as background, so each terminal cell shows two vertical pixels.
const UpperHalf = "▀"

// CellPixels converts a terminal cell count to the raster size that fills
// it: one pixel wide and two pixels tall per cell.
func CellPixels(cols, rows int) (width, height int) {
	return cols, rows * 2
}

// Cells renders img as rows of half-block cells. Runs of cells with the same
// colors share one style so the output stays small.
func Cells(img image.Image) string {
	b := img.Bounds()
	var sb strings.Builder

	for y := b.Min.Y; y < b.Max.Y; y += 2 {
		if y > b.Min.Y {
			sb.WriteByte('\n')
		}

		var run strings.Builder
		var runFg, runBg string
		flush := func() {
			if run.Len() == 0 {
				return
			}
			sb.WriteString(lipgloss.NewStyle().
				Foreground(lipgloss.Color(runFg)).
				Background(lipgloss.Color(runBg)).
				Render(run.String()))
			run.Reset()
		}

		for x := b.Min.X; x < b.Max.X; x++ {
			fg := hex(img.At(x, y))
			bg := fg
			if y+1 < b.Max.Y {
				bg = hex(img.At(x, y+1))
			}
			if fg != runFg || bg != runBg {
				flush()
				runFg, runBg = fg, bg
			}
			run.WriteString(UpperHalf)
		}
		flush()
	}
	return sb.String()
}

func hex(c color.Color) string {
	r, g, b, _ := c.RGBA()
	return fmt.Sprintf("#%02x%02x%02x", r>>8, g>>8, b>>8)
}
