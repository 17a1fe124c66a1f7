// Package portkill terminates the processes listening on a TCP port.
// Only Linux is supported; lookup goes through lsof(8).
package portkill

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
)

var ErrUnsupported = errors.New("kill by port not implemented for this OS")

// Killer finds and signals the holders of a port. The zero value uses lsof
// and SIGTERM.
type Killer struct {
	// Find returns the pids bound to port.
	Find func(ctx context.Context, port int) ([]int, error)
	// Signal delivers the termination signal to pid.
	Signal func(pid int) error
	// GOOS overrides runtime.GOOS.
	GOOS string
}

// Kill signals every process on port and returns the pids that were
// signalled. It keeps going after a failed signal and reports the first error.
func (k Killer) Kill(ctx context.Context, port int) ([]int, error) {
	goos := k.GOOS
	if goos == "" {
		goos = runtime.GOOS
	}
	if goos != "linux" {
		return nil, ErrUnsupported
	}
	if port <= 0 || port > 65535 {
		return nil, fmt.Errorf("invalid port %d", port)
	}
	find := k.Find
	if find == nil {
		find = Lsof
	}
	sig := k.Signal
	if sig == nil {
		sig = Terminate
	}

	pids, err := find(ctx, port)
	if err != nil {
		return nil, err
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("no process is using port %d", port)
	}
	var killed []int
	var firstErr error
	for _, pid := range pids {
		if err := sig(pid); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("signal pid %d: %w", pid, err)
			}
			continue
		}
		killed = append(killed, pid)
	}
	return killed, firstErr
}

// Lsof runs `lsof -t -i:<port>`. lsof exits 1 when nothing matches; that is
// reported as an empty result.
func Lsof(ctx context.Context, port int) ([]int, error) {
	out, err := exec.CommandContext(ctx, "lsof", "-t", "-i:"+strconv.Itoa(port)).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && exitErr.ExitCode() == 1 && len(out) == 0 {
			return nil, nil
		}
		return nil, fmt.Errorf("lsof: %w", err)
	}
	return ParsePIDs(string(out)), nil
}

// ParsePIDs reads one pid per line, skipping anything that is not a number
// and duplicates.
func ParsePIDs(s string) []int {
	seen := map[int]bool{}
	var pids []int
	for _, line := range strings.Split(s, "\n") {
		pid, err := strconv.Atoi(strings.TrimSpace(line))
		if err != nil || pid <= 0 || seen[pid] {
			continue
		}
		seen[pid] = true
		pids = append(pids, pid)
	}
	return pids
}

// Terminate sends SIGTERM to pid.
func Terminate(pid int) error {
	p, err := os.FindProcess(pid)
	if err != nil {
		return err
	}
	return p.Signal(syscall.SIGTERM)
}
