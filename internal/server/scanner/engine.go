package scanner

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
)

// threatPattern extracts the threat name from engine output lines of the form
// "/tmp/scan-…: Eicar-Test-Signature FOUND".
var threatPattern = regexp.MustCompile(`: (.+) FOUND`)

// runCommand is a seam for tests. It runs the engine and returns its combined
// output and exit code. A non-nil error means the engine could not be invoked
// at all (binary missing, permission denied), not that it found a threat.
var runCommand = func(ctx context.Context, name string, args ...string) (output []byte, exitCode int, err error) {
	cmd := exec.CommandContext(ctx, name, args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return out, exitErr.ExitCode(), nil
		}
		return nil, 0, err
	}
	return out, 0, nil
}

// runEngine invokes the external engine on the staged payload and converts
// its exit signal and textual output into a Result. ClamAV convention: exit 0
// is clean, exit 1 is a detected threat, anything else is an engine failure.
func (s *Scanner) runEngine(ctx context.Context, path string) (Result, error) {
	out, code, err := runCommand(ctx, s.cmd, "--no-summary", path)
	if err != nil {
		return Result{}, err
	}

	output := strings.TrimSpace(string(out))
	switch code {
	case 0:
		return Result{
			Verdict:   VerdictClean,
			Signature: "Engine scan passed",
		}, nil
	case 1:
		threat := "Unknown threat"
		if m := threatPattern.FindStringSubmatch(output); m != nil {
			threat = m[1]
		}
		return Result{
			Verdict:   VerdictInfected,
			Threat:    threat,
			Signature: output,
		}, nil
	default:
		errText := output
		if errText == "" {
			errText = fmt.Sprintf("engine exited with code %d", code)
		}
		return Result{
			Verdict:   VerdictError,
			Err:       errText,
			Signature: "Scan error",
		}, nil
	}
}
