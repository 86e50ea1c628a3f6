package tier

import (
	"bufio"
	"io"
	"os"
	"runtime"
	"strconv"
	"strings"
)

// HostHints probes the local machine. Memory is read from /proc/meminfo
// where available and is otherwise left unknown.
func HostHints() Hints {
	h := Hints{Cores: runtime.NumCPU()}
	if f, err := os.Open("/proc/meminfo"); err == nil {
		defer f.Close()
		h.MemoryGB = parseMemInfo(f)
	}
	return h
}

// parseMemInfo returns MemTotal in GiB, or 0.
func parseMemInfo(r io.Reader) float64 {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 || fields[0] != "MemTotal:" {
			continue
		}
		kb, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return 0
		}
		return kb / (1024 * 1024)
	}
	return 0
}
