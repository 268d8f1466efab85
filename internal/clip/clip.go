// Package clip makes extracted review text available for pasting. It
// tries the native clipboard first, then the OSC52 terminal escape,
// and as a last resort writes a temp file and reports its path.
package clip

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	atotto "github.com/atotto/clipboard"
	osc52 "github.com/aymanbagabas/go-osc52/v2"
	"golang.org/x/term"
)

// Method identifies which mechanism ended up holding the text.
type Method string

const (
	MethodNative Method = "native" // OS clipboard via github.com/atotto/clipboard
	MethodOSC52  Method = "osc52"  // terminal clipboard via the OSC52 escape sequence
	MethodFile   Method = "file"   // temp file fallback
)

// Result reports where WriteAll put the text.
type Result struct {
	Method   Method
	FilePath string // set only when Method == MethodFile
}

// Seams for tests; the real backends need a display or a TTY.
var (
	copyNative   = func(text string) error { return atotto.WriteAll(text) }
	copyTerminal = copyOSC52
)

// WriteAll copies text through the first backend that accepts it. The
// OSC52 path covers SSH and WSL sessions where no native clipboard is
// reachable; when both clipboards refuse, the text lands in a temp
// file so it is never lost.
func WriteAll(text string) (Result, error) {
	if copyNative(text) == nil {
		return Result{Method: MethodNative}, nil
	}
	if copyTerminal(text) == nil {
		return Result{Method: MethodOSC52}, nil
	}

	path, err := spillToFile(text)
	if err != nil {
		return Result{}, err
	}
	return Result{Method: MethodFile, FilePath: path}, nil
}

// osc52LimitBytes caps the escape payload; terminals drop or garble
// oversized OSC52 writes.
const osc52LimitBytes = 100_000

func copyOSC52(text string) error {
	if text == "" {
		return errors.New("empty clipboard text")
	}
	if !term.IsTerminal(int(os.Stderr.Fd())) {
		return errors.New("stderr is not a terminal")
	}
	if len(text) > osc52LimitBytes {
		return fmt.Errorf("text too large for OSC52 (%d bytes > %d)", len(text), osc52LimitBytes)
	}

	seq := osc52.New(text).Limit(osc52LimitBytes)
	switch {
	case os.Getenv("TMUX") != "":
		seq = seq.Tmux()
	case os.Getenv("STY") != "":
		seq = seq.Screen()
	}

	// The escape goes to stderr; stdout is reserved for the review text.
	_, err := seq.WriteTo(os.Stderr)
	return err
}

func spillToFile(text string) (string, error) {
	f, err := os.CreateTemp("", fmt.Sprintf("critic-clipboard-%d-*.txt", time.Now().UnixNano()))
	if err != nil {
		return "", err
	}
	path := f.Name()
	defer func() {
		_ = f.Close()
		if err != nil {
			_ = os.Remove(path)
		}
	}()

	if _, err = f.WriteString(text); err != nil {
		return "", err
	}
	if err = f.Close(); err != nil {
		return "", err
	}
	return filepath.Clean(path), nil
}
