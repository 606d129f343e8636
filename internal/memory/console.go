package memory

import (
	"bufio"
	"fmt"
	"os"

	"github.com/eiannone/keyboard"
	"github.com/golang/glog"
	"golang.org/x/term"
)

// ConsoleBase is the physical address where the console device is mapped.
const ConsoleBase uint32 = 0x02010100

// ConsoleLen is the size of the console device's register window.
const ConsoleLen uint32 = 4

const (
	consoleRegData   = 0 // read: next input byte (blocking); write: emit byte
	consoleRegStatus = 1 // read: 1 when backed by a real terminal
)

// Console is a memory-mapped character device. A read of the data register
// blocks until a key is available; a write emits the byte on stdout. When
// stdin is a terminal, input comes from single unbuffered keystrokes,
// otherwise bytes are read from stdin directly so piped input works.
type Console struct {
	interactive bool
	stdin       *bufio.Reader
}

func NewConsole() *Console {
	return &Console{
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
		stdin:       bufio.NewReader(os.Stdin),
	}
}

func (c *Console) DebugLabel() string {
	return "console"
}

func (c *Console) getc() (byte, error) {
	if !c.interactive {
		return c.stdin.ReadByte()
	}

	ch, key, err := keyboard.GetSingleKey()
	if err != nil {
		return 0, err
	}
	if key == keyboard.KeyCtrlC {
		return 0, ErrHalt
	}
	if ch == 0 {
		return byte(key), nil
	}
	return byte(ch), nil
}

func (c *Console) Read(offset uint32, data []byte) error {
	for i := range data {
		switch offset + uint32(i) {
		case consoleRegData:
			ch, err := c.getc()
			if err != nil {
				glog.Warningf("console input failed: %v", err)
				return err
			}
			data[i] = ch
		case consoleRegStatus:
			if c.interactive {
				data[i] = 1
			} else {
				data[i] = 0
			}
		default:
			data[i] = 0
		}
	}
	return nil
}

func (c *Console) Write(offset uint32, data []byte) error {
	for i, v := range data {
		if offset+uint32(i) == consoleRegData {
			fmt.Printf("%c", v)
		}
	}
	return nil
}
