// Command vtmaps lists the modules loaded in a process and classifies
// addresses the way the vtable package does before relocating a table.
//
//	vtmaps -pid 1234 0x7f12a0001148 0x55d0c0000000
package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/pboyd/vtable"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	nameStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	addrStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))
)

// process is the part of vtable.ProcessClassifier that vtmaps uses.
type process interface {
	Modules() []vtable.Module
	Classify(addr uintptr) vtable.MemoryState
}

func main() {
	var (
		pid     = flag.Int("pid", 0, "Process to inspect (default: this process)")
		modules = flag.Bool("modules", true, "List loaded modules")
	)
	flag.Parse()

	c, err := vtable.NewProcessClassifier(*pid)
	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}

	run(os.Stdout, c, *modules, flag.Args())
}

func run(w io.Writer, p process, listModules bool, addrs []string) {
	if listModules {
		fmt.Fprintln(w, titleStyle.Render("Modules"))
		for _, m := range p.Modules() {
			name := m.Name
			if name == "" {
				name = "<main>"
			}
			fmt.Fprintf(w, "  %s %s-%s\n",
				nameStyle.Render(fmt.Sprintf("%-32s", name)),
				addrStyle.Render(fmt.Sprintf("%#x", m.Start)),
				addrStyle.Render(fmt.Sprintf("%#x", m.End)),
			)
		}
	}

	if len(addrs) == 0 {
		return
	}

	fmt.Fprintln(w, titleStyle.Render("Addresses"))
	for _, arg := range addrs {
		addr, err := parseAddr(arg)
		if err != nil {
			fmt.Fprintf(w, "  %s %s\n", arg, errorStyle.Render(err.Error()))
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", addrStyle.Render(fmt.Sprintf("%#018x", addr)), p.Classify(addr))
	}
}

func parseAddr(s string) (uintptr, error) {
	v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uintptr(v), nil
}
