package shell

import (
	"fmt"
	"os"
	"runtime"
)

// Cwd returns the shell's current working directory. Only Linux exposes it
// through /proc; elsewhere, and after exit, the starting directory is returned.
func (c *Channel) Cwd() string {
	c.mu.Lock()
	cmd := c.cmd
	c.mu.Unlock()

	if cmd != nil && cmd.Process != nil && runtime.GOOS == "linux" {
		if dir, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", cmd.Process.Pid)); err == nil {
			return dir
		}
	}
	return c.dir
}
