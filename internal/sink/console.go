package sink

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/deploymenttheory/go-genmeta/internal/metadata"
)

// maxValueWidth is the longest value, in characters, shown in the full
// listing.
const maxValueWidth = 100

// Console prints metadata for people.
type Console struct {
	Out io.Writer
	// AIOnly restricts output to the candidate entries.
	AIOnly bool
	// Verbose reports files without candidates in AIOnly mode.
	Verbose bool
	// NoColor forces plain headings.
	NoColor bool

	renderer *lipgloss.Renderer
}

func (c *Console) styles() (title, section lipgloss.Style) {
	if c.renderer == nil {
		c.renderer = lipgloss.NewRenderer(c.Out)
		if c.NoColor {
			c.renderer.SetColorProfile(termenv.Ascii)
		}
	}
	title = c.renderer.NewStyle().Bold(true)
	section = c.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	return title, section
}

// Show prints one file's metadata. raw is the full tag map and candidates
// the entries classified as generation metadata.
func (c *Console) Show(path string, raw, candidates *metadata.Map) {
	title, section := c.styles()

	if c.AIOnly {
		if candidates.Len() == 0 {
			if c.Verbose {
				fmt.Fprintf(c.Out, "\n%s: No AI generation metadata detected\n", path)
			}
			return
		}
		fmt.Fprintf(c.Out, "\n%s\n", section.Render("AI Generation Metadata in "+path+":"))
		candidates.Range(func(tag, value string) bool {
			fmt.Fprintf(c.Out, "  %s: %s\n", tag, value)
			return true
		})
		return
	}

	rule := strings.Repeat("=", 60)
	fmt.Fprintf(c.Out, "\n%s\n%s\n%s\n", rule, title.Render("File: "+path), rule)
	if raw.Len() == 0 {
		fmt.Fprintln(c.Out, "No EXIF data found.")
		return
	}

	if candidates.Len() > 0 {
		fmt.Fprintf(c.Out, "\n%s\n%s\n", section.Render("POTENTIAL AI GENERATION METADATA:"), strings.Repeat("-", 40))
		candidates.Range(func(tag, value string) bool {
			fmt.Fprintf(c.Out, "%s: %s\n", tag, value)
			return true
		})
	}

	heading := fmt.Sprintf("ALL EXIF DATA (%d tags):", raw.Len())
	fmt.Fprintf(c.Out, "\n%s\n%s\n", section.Render(heading), strings.Repeat("-", 40))
	for _, tag := range raw.SortedKeys() {
		value, _ := raw.Get(tag)
		fmt.Fprintf(c.Out, "%s: %s\n", tag, Truncate(value, maxValueWidth))
	}
}

// Truncate shortens s to at most width characters, ending in "...".
func Truncate(s string, width int) string {
	if utf8.RuneCountInString(s) <= width {
		return s
	}
	runes := []rune(s)
	return string(runes[:width-3]) + "..."
}
