// Command zmachine runs a v3 story file either interactively, through a
// terminal UI, or headlessly against a script of canned input lines.
package main

import (
	"bufio"
	"bytes"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	"zmachine3/ioport"
	"zmachine3/zmachine"
)

var (
	romPath   string
	batchPath string
)

func init() {
	flag.StringVar(&romPath, "rom", "", "path to a v3 z-machine story file")
	flag.StringVar(&batchPath, "batch", "", "path to a file of newline-separated input lines; runs headlessly and prints the transcript")
	flag.Parse()
}

func main() {
	if romPath == "" {
		fmt.Fprintln(os.Stderr, "usage: zmachine -rom <story-file> [-batch <input-file>]")
		os.Exit(1)
	}

	romBytes, err := os.ReadFile(romPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading story file:", err)
		os.Exit(1)
	}

	if batchPath != "" {
		runBatch(romBytes, batchPath)
		return
	}

	runInteractive(romBytes)
}

// runBatch feeds every line of the script file to the machine up front and
// prints the resulting transcript. A GetInput result after the script is
// exhausted means the story wanted more input than the script provided;
// that's reported, not treated as a crash.
func runBatch(romBytes []byte, scriptPath string) {
	script, err := os.ReadFile(scriptPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "reading input script:", err)
		os.Exit(1)
	}

	port := ioport.NewBuffered()
	scanner := bufio.NewScanner(bytes.NewReader(script))
	for scanner.Scan() {
		port.Feed(scanner.Text())
	}

	m, err := zmachine.New(romBytes, port, time.Now().UnixNano())
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading story file:", err)
		os.Exit(1)
	}

	r := m.Run()
	fmt.Print(port.Output())
	if r.Kind == zmachine.GetInput {
		fmt.Println("\n[script exhausted, story wanted more input]")
	}
}

// --- interactive Bubble Tea frontend ---

type outputMsg string
type doneMsg zmachine.Result

type model struct {
	transcript string
	input      textinput.Model
	width      int
	height     int
	done       bool

	fromMachine <-chan string
	toDriver    chan<- string
	resultCh    <-chan zmachine.Result
}

func newModel(fromMachine <-chan string, toDriver chan<- string, resultCh <-chan zmachine.Result) model {
	ti := textinput.New()
	ti.Focus()
	ti.CharLimit = 200
	ti.Width = 60
	ti.Prompt = "> "

	return model{
		input:       ti,
		fromMachine: fromMachine,
		toDriver:    toDriver,
		resultCh:    resultCh,
	}
}

func waitForOutput(fromMachine <-chan string, resultCh <-chan zmachine.Result) tea.Cmd {
	return func() tea.Msg {
		select {
		case text := <-fromMachine:
			return outputMsg(text)
		case r := <-resultCh:
			return doneMsg(r)
		}
	}
}

func (m model) Init() tea.Cmd {
	return tea.Batch(waitForOutput(m.fromMachine, m.resultCh), textinput.Blink)
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.input.Width = m.width - 4

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "enter":
			if m.done {
				return m, nil
			}
			line := m.input.Value()
			m.transcript += "> " + line + "\n"
			m.input.SetValue("")
			m.toDriver <- line
			return m, nil
		}

	case outputMsg:
		m.transcript += string(msg)
		return m, waitForOutput(m.fromMachine, m.resultCh)

	case doneMsg:
		m.done = true
		if zmachine.Result(msg).Kind == zmachine.Break {
			m.transcript += "\n[fatal: " + zmachine.Result(msg).Reason + "]\n"
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m model) View() string {
	body := wordwrap.String(m.transcript, max(m.width-2, 20))
	style := lipgloss.NewStyle().Padding(0, 1)
	if m.done {
		return style.Render(body)
	}
	return style.Render(body) + "\n" + m.input.View()
}

// runInteractive bridges a Machine running on its own goroutine to a Bubble
// Tea program via ioport.Channel: the driver goroutine re-enters Run after
// every line the UI submits, since Run suspends (rather than blocks) on
// sread.
func runInteractive(romBytes []byte) {
	outCh := make(chan string)
	flushCh := make(chan struct{})
	portIn := make(chan string, 1)
	uiLines := make(chan string)
	resultCh := make(chan zmachine.Result, 1)

	port := ioport.NewChannel(outCh, flushCh, portIn)
	m, err := zmachine.New(romBytes, port, time.Now().UnixNano())
	if err != nil {
		fmt.Fprintln(os.Stderr, "loading story file:", err)
		os.Exit(1)
	}

	go func() {
		for {
			r := m.Run()
			if r.Kind != zmachine.GetInput {
				resultCh <- r
				return
			}
			portIn <- <-uiLines
		}
	}()

	go func() {
		for range flushCh {
		}
	}()

	tui := tea.NewProgram(newModel(outCh, uiLines, resultCh))
	if _, err := tui.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "running interface:", err)
		os.Exit(1)
	}
}
