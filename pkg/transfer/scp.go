package transfer

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/cuemby/gplmt/pkg/types"
)

// Options carries the SSH connection parameters a Copy needs to reach
// a node: the user@host target, port, any extra ssh/scp arguments from
// the node declaration, and the control-master socket path to reuse
// rather than opening a fresh connection.
type Options struct {
	Target      string // "user@host"
	Port        int
	ExtraArgs   []string
	ControlPath string
}

// Copy runs scp to copy source to destination, one of which is
// expected to already carry the "target:" prefix identifying the
// remote side. It reuses the ControlMaster connection at
// opts.ControlPath rather than negotiating a new one.
func Copy(ctx context.Context, opts Options, source, destination string) error {
	argv := []string{
		"-o", "StrictHostKeyChecking=no",
		"-o", "BatchMode=yes",
		"-o", "ControlMaster=no",
		"-o", "ControlPath=" + opts.ControlPath,
		"-P", strconv.Itoa(opts.Port),
	}
	argv = append(argv, opts.ExtraArgs...)
	argv = append(argv, "--", source, destination)

	cmd := exec.CommandContext(ctx, "scp", argv...)
	if err := cmd.Run(); err != nil {
		return &types.ExecutionError{
			Message: fmt.Sprintf("copy from %q to %q failed", source, destination),
			Cause:   err,
		}
	}
	return nil
}

// RemoteSource builds the "target:path" form scp expects for the
// remote side of a get, relative paths are left as-is (scp resolves
// them against the remote user's home directory).
func RemoteSource(target, path string) string {
	return fmt.Sprintf("%s:%s", target, path)
}

// LocalSource returns source as scp expects it for the local side of a
// put: relative paths are prefixed with "./" so a value that happens
// to contain a colon isn't misread as a remote spec.
func LocalSource(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return "./" + path
}
