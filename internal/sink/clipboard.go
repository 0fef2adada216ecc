package sink

import (
	"bytes"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/aymanbagabas/go-osc52/v2"
	"github.com/pkg/errors"

	"github.com/deploymenttheory/go-genmeta/internal/logger"
	"github.com/deploymenttheory/go-genmeta/internal/metadata"
	"github.com/deploymenttheory/go-genmeta/internal/workflow"
)

// ErrClipboardUnavailable is returned when no clipboard mechanism on the
// host accepted the text.
var ErrClipboardUnavailable = errors.New("no clipboard mechanism available")

// Clipboard writes text to the system clipboard.
type Clipboard interface {
	WriteText(text string) error
}

// Overridden in tests.
var (
	lookPath = exec.LookPath
	openTTY  = func() (io.WriteCloser, error) {
		return os.OpenFile("/dev/tty", os.O_WRONLY, 0)
	}
	getenv = os.Getenv
)

// Command pipes text into a clipboard helper program.
type Command struct {
	Name string
	Args []string
}

func (c Command) WriteText(text string) error {
	path, err := lookPath(c.Name)
	if err != nil {
		return errors.Wrap(err, c.Name)
	}
	cmd := exec.Command(path, c.Args...)
	cmd.Stdin = strings.NewReader(text)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return errors.Wrapf(err, "%s: %s", c.Name, msg)
		}
		return errors.Wrap(err, c.Name)
	}
	return nil
}

func (c Command) String() string {
	return strings.Join(append([]string{c.Name}, c.Args...), " ")
}

// Terminal sets the clipboard through the controlling terminal with an
// OSC 52 escape. Inside tmux or screen the sequence is wrapped in the
// multiplexer's passthrough.
type Terminal struct{}

func (Terminal) WriteText(text string) error {
	tty, err := openTTY()
	if err != nil {
		return errors.Wrap(err, "open terminal")
	}
	defer tty.Close()

	seq := osc52.New(text)
	term := getenv("TERM")
	switch {
	case getenv("TMUX") != "" || strings.HasPrefix(term, "tmux"):
		seq = seq.Tmux()
	case strings.HasPrefix(term, "screen"):
		seq = seq.Screen()
	}
	if _, err := seq.WriteTo(tty); err != nil {
		return errors.Wrap(err, "write terminal")
	}
	return nil
}

func (Terminal) String() string { return "osc52" }

// Chain tries each clipboard in order and stops at the first success.
type Chain []Clipboard

func (c Chain) WriteText(text string) error {
	var failures []string
	for _, cb := range c {
		err := cb.WriteText(text)
		if err == nil {
			return nil
		}
		logger.Debugf("Clipboard %v failed: %v", cb, err)
		failures = append(failures, err.Error())
	}
	if len(failures) == 0 {
		return ErrClipboardUnavailable
	}
	return errors.Wrap(ErrClipboardUnavailable, strings.Join(failures, "; "))
}

// ForHost returns the clipboard mechanisms to try on goos.
func ForHost(goos string) Chain {
	switch goos {
	case "windows":
		return Chain{Command{Name: "clip"}}
	case "darwin":
		return Chain{Command{Name: "pbcopy"}, Terminal{}}
	default:
		return Chain{
			Command{Name: "wl-copy"},
			Command{Name: "xclip", Args: []string{"-selection", "clipboard"}},
			Command{Name: "xsel", Args: []string{"--clipboard", "--input"}},
			Terminal{},
		}
	}
}

// Copy puts candidates on the clipboard: a detected workflow as
// pretty-printed JSON, else the first JSON value pretty-printed, else
// "tag: value" lines. The returned Kind says which.
func Copy(cb Clipboard, candidates *metadata.Map) (Kind, error) {
	if candidates.Len() == 0 {
		return "", ErrNothingToExport
	}
	text, kind, err := clipboardText(candidates)
	if err != nil {
		return "", err
	}
	if err := cb.WriteText(text); err != nil {
		return "", err
	}
	return kind, nil
}

func clipboardText(candidates *metadata.Map) (string, Kind, error) {
	if g, ok := workflow.Detect(candidates); ok {
		data, err := g.Indent()
		if err != nil {
			return "", "", errors.Wrapf(err, "format workflow from %s", g.Tag)
		}
		return string(data), KindWorkflow, nil
	}

	var pretty []byte
	candidates.Range(func(_, value string) bool {
		if !workflow.IsJSON(value) {
			return true
		}
		data, err := workflow.Indent([]byte(value))
		if err != nil {
			return true
		}
		pretty = data
		return false
	})
	if pretty != nil {
		return string(pretty), KindJSON, nil
	}

	lines := make([]string, 0, candidates.Len())
	candidates.Range(func(tag, value string) bool {
		lines = append(lines, tag+": "+value)
		return true
	})
	return strings.Join(lines, "\n"), KindText, nil
}

// JSONSource returns the tag whose value Copy would use for a KindJSON copy.
func JSONSource(candidates *metadata.Map) string {
	source := ""
	candidates.Range(func(tag, value string) bool {
		if workflow.IsJSON(value) {
			source = tag
			return false
		}
		return true
	})
	return source
}
