package execenv

import (
	"bytes"
	"errors"
	"os/exec"
	"time"
)

// execHelper runs cmd in its own process group and collects an ExecResult
// tagged with the classification that chose cmd's shell and environment.
// System and ShellResolver share it.
//
// maxOutput caps each of stdout and stderr; 0 means no cap. A non-zero
// exit status is reported in the result, not as an error.
func execHelper(cmd *exec.Cmd, maxOutput int, class Classification) (*ExecResult, error) {
	stdout := &cappedBuffer{limit: maxOutput}
	stderr := &cappedBuffer{limit: maxOutput}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	setupProcessGroup(cmd)

	start := time.Now()
	runErr := cmd.Run()
	result := &ExecResult{
		Duration:       time.Since(start),
		Classification: class,
		Stdout:         stdout.String(),
		Stderr:         stderr.String(),
		Truncated:      stdout.dropped || stderr.dropped,
	}

	var exitErr *exec.ExitError
	switch {
	case runErr == nil:
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
	default:
		return nil, runErr
	}
	return result, nil
}

// cappedBuffer keeps the first limit bytes written to it and drops the
// rest, remembering that it did. A limit <= 0 keeps everything.
//
// The buffer is a field, not embedded, so io.Copy cannot bypass Write
// through a promoted ReadFrom.
type cappedBuffer struct {
	buf     bytes.Buffer
	limit   int
	dropped bool
}

// Write always reports len(p) so the child never sees a short write.
func (b *cappedBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if b.limit > 0 {
		room := max(b.limit-b.buf.Len(), 0)
		if room < len(p) {
			b.dropped = true
			p = p[:room]
		}
	}
	if _, err := b.buf.Write(p); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *cappedBuffer) String() string {
	return b.buf.String()
}
