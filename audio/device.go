package audio

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

var ErrSelectionCanceled = errors.New("device selection canceled")

var (
	pickerTitle  = lipgloss.NewStyle().Bold(true)
	pickerCursor = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
	pickerWarn   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
)

// FindDevice returns the first capture device whose name or ID contains
// name, ignoring case. An empty name selects the system default (nil).
func FindDevice(ctx Context, name string) (*DeviceInfo, error) {
	if name == "" {
		return nil, nil
	}
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}
	want := strings.ToLower(name)
	for i, d := range devices {
		if strings.ToLower(d.ID) == want || strings.ToLower(d.Name) == want {
			return &devices[i], nil
		}
	}
	for i, d := range devices {
		if strings.Contains(strings.ToLower(d.Name), want) {
			return &devices[i], nil
		}
	}
	return nil, fmt.Errorf("no capture device matches %q", name)
}

// ListDevices writes one line per capture device.
func ListDevices(w io.Writer, ctx Context) error {
	devices, err := ctx.Devices()
	if err != nil {
		return fmt.Errorf("enumerating devices: %w", err)
	}
	if len(devices) == 0 {
		fmt.Fprintln(w, "no capture devices found")
		return nil
	}
	for _, d := range devices {
		line := d.Name
		if IsBluetooth(d.Name) {
			line += pickerWarn.Render(" [lower audio quality]")
		}
		fmt.Fprintf(w, "%s\n    id: %s\n", line, d.ID)
	}
	return nil
}

// SelectDevice presents an interactive device picker on the terminal and
// returns the selected device. A single device is returned without
// prompting.
func SelectDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, fmt.Errorf("enumerating devices: %w", err)
	}

	if len(devices) == 0 {
		return nil, fmt.Errorf("no capture devices found")
	}

	if len(devices) == 1 {
		return &devices[0], nil
	}

	fd := int(os.Stdin.Fd())
	oldState, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("setting raw mode: %w", err)
	}
	defer term.Restore(fd, oldState)

	cursor := 0
	render := func() {
		fmt.Print("\r\x1b[J")
		fmt.Print(pickerTitle.Render("Select input device (↑/↓, Enter to confirm):") + "\r\n\r\n")
		for i, d := range devices {
			tag := ""
			if IsBluetooth(d.Name) {
				tag = pickerWarn.Render(" [⚠ Lower audio quality]")
			}
			if i == cursor {
				fmt.Print("  " + pickerCursor.Render("▶ "+d.Name) + tag + "\r\n")
			} else {
				fmt.Print("    " + d.Name + tag + "\r\n")
			}
		}
	}

	render()

	buf := make([]byte, 3)
	for {
		n, err := os.Stdin.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("reading input: %w", err)
		}

		switch {
		case n == 1 && buf[0] == 13: // Enter
			fmt.Print("\r\n")
			return &devices[cursor], nil
		case n == 1 && (buf[0] == 3 || buf[0] == 'q'): // Ctrl+C
			fmt.Print("\r\n")
			return nil, ErrSelectionCanceled
		case n == 1 && buf[0] == 'j', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'B':
			if cursor < len(devices)-1 {
				cursor++
			}
		case n == 1 && buf[0] == 'k', n == 3 && buf[0] == 0x1b && buf[1] == '[' && buf[2] == 'A':
			if cursor > 0 {
				cursor--
			}
		}

		fmt.Printf("\x1b[%dA", len(devices)+2)
		render()
	}
}
