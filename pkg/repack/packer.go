package repack

import (
	"context"
	stderrors "errors"
	"os/exec"
	"slices"

	"github.com/matzehuels/chocorepack/pkg/errors"
)

// DefaultPackCommand is the packer invoked when none is configured.
var DefaultPackCommand = []string{"choco", "pack"}

// PackRequest describes one prepared package to pack.
type PackRequest struct {
	ID        string
	Version   string
	Dir       string // prepared package directory; the packer runs here
	Manifest  string // manifest path inside Dir
	OutputDir string
}

// PackResult is the outcome of a packer invocation.
type PackResult struct {
	Command  []string
	ExitCode int
	Output   string
}

// OK reports whether the packer exited with status 0.
func (r *PackResult) OK() bool { return r != nil && r.ExitCode == 0 }

// Packer builds a package archive from a prepared directory.
//
// A packer that ran but failed reports it through PackResult.ExitCode with a
// nil error. The error is for failures to run the packer at all.
type Packer interface {
	Pack(ctx context.Context, req PackRequest) (*PackResult, error)
}

// CommandPacker runs an external packer as
// "<Command...> <manifest> --out <outputDir>".
type CommandPacker struct {
	Command []string
}

// Pack runs the packer in req.Dir and captures its combined output.
func (p CommandPacker) Pack(ctx context.Context, req PackRequest) (*PackResult, error) {
	command := p.Command
	if len(command) == 0 {
		command = DefaultPackCommand
	}
	argv := append(slices.Clone(command), req.Manifest, "--out", req.OutputDir)
	res := &PackResult{Command: argv}

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = req.Dir
	out, err := cmd.CombinedOutput()
	res.Output = string(out)
	if err == nil {
		return res, nil
	}
	if ctx.Err() != nil {
		res.ExitCode = -1
		return res, ctx.Err()
	}
	var exitErr *exec.ExitError
	if stderrors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	}
	res.ExitCode = -1
	return res, errors.Wrap(errors.ErrCodePackerFailed, err, "run %s", argv[0])
}
