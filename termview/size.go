package termview

import (
	"os"

	"golang.org/x/sys/unix"
)

// queryWindowSize reads the terminal's column/row count via TIOCGWINSZ,
// trying stdout then stderr (adapted from the teacher's GetSize cascade).
func queryWindowSize() (cols, rows int, ok bool) {
	for _, fd := range []uintptr{os.Stdout.Fd(), os.Stderr.Fd()} {
		ws, err := unix.IoctlGetWinsize(int(fd), unix.TIOCGWINSZ)
		if err != nil {
			continue
		}
		if ws.Col > 0 && ws.Row > 0 {
			return int(ws.Col), int(ws.Row), true
		}
	}
	return 0, 0, false
}
