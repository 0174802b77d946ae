package gui

import (
	"fmt"
	"io"
	"sync"

	"a9i/src/messages"
	"a9i/src/popup"
)

// Console is a popup.Renderer that prints popup content to a writer. It backs
// the console UI, where no window toolkit is running.
type Console struct {
	mu      sync.Mutex
	out     io.Writer
	text    string
	style   popup.Style
	visible bool
	printed string
}

func NewConsole(out io.Writer) *Console { return &Console{out: out} }

func (c *Console) SetText(text string, style popup.Style) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.text, c.style = text, style
	c.print()
}

func (c *Console) Move(messages.Point) {}

func (c *Console) SetOpacity(float64) {}

func (c *Console) Show() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = true
	c.print()
}

func (c *Console) Hide() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.visible = false
	c.printed = ""
}

// print writes results once and only the first loading frame, not every dot.
func (c *Console) print() {
	if !c.visible {
		return
	}
	line := c.text
	if c.style == popup.StyleLoading {
		line = "…"
	}
	if line == c.printed {
		return
	}
	c.printed = line
	if c.style == popup.StyleResult {
		for _, l := range WrapLines(c.text, wrapColumns*2, maxLines*4) {
			fmt.Fprintln(c.out, l)
		}
		return
	}
	fmt.Fprintln(c.out, c.text)
}
