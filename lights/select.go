package lights

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// SelectDevice picks a device without asking anyone. A non-empty preference matches a
// device ID exactly or a name case-insensitively as a substring; an empty preference only
// succeeds when there is exactly one candidate.
func SelectDevice(candidates []Device, preference string) (Device, error) {
	if len(candidates) == 0 {
		return Device{}, ErrNoDevices
	}

	preference = strings.TrimSpace(preference)
	if preference == "" {
		if len(candidates) == 1 {
			return candidates[0], nil
		}
		return Device{}, errors.Wrapf(ErrNoSelection, "%d devices available", len(candidates))
	}

	for _, d := range candidates {
		if string(d.ID) == preference {
			return d, nil
		}
	}

	var matches []Device
	needle := strings.ToLower(preference)
	for _, d := range candidates {
		if strings.Contains(strings.ToLower(d.Name), needle) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return Device{}, errors.Wrapf(ErrNoSelection, "no device matches %q", preference)
	case 1:
		return matches[0], nil
	default:
		return Device{}, errors.Wrapf(ErrNoSelection, "%d devices match %q", len(matches), preference)
	}
}

// Selector asks for a device when SelectDevice cannot decide.
type Selector interface {
	Select(ctx context.Context, candidates []Device) (Device, error)
}

// PromptSelector lists the candidates on Out and reads a 1-based choice from In.
type PromptSelector struct {
	In  io.Reader
	Out io.Writer
}

type scanResult struct {
	line string
	ok   bool
	err  error
}

// Select returns ctx.Err() as soon as ctx ends, even while waiting for input. A read
// already in flight is abandoned since In cannot be interrupted.
func (p PromptSelector) Select(ctx context.Context, candidates []Device) (Device, error) {
	if len(candidates) == 0 {
		return Device{}, ErrNoDevices
	}

	for i, d := range candidates {
		fmt.Fprintf(p.Out, "  [%d] %s\n", i+1, d)
	}

	scanner := bufio.NewScanner(p.In)
	for {
		if err := ctx.Err(); err != nil {
			return Device{}, err
		}
		fmt.Fprintf(p.Out, "Select a device [1-%d]: ", len(candidates))

		read := make(chan scanResult, 1)
		go func() {
			ok := scanner.Scan()
			read <- scanResult{line: scanner.Text(), ok: ok, err: scanner.Err()}
		}()

		var res scanResult
		select {
		case res = <-read:
		case <-ctx.Done():
			fmt.Fprintln(p.Out)
			return Device{}, ctx.Err()
		}
		if !res.ok {
			if res.err != nil {
				return Device{}, errors.Wrap(res.err, "reading device selection")
			}
			return Device{}, errors.Wrap(ErrNoSelection, "input closed")
		}

		answer := strings.TrimSpace(res.line)
		if n, err := strconv.Atoi(answer); err == nil {
			if n >= 1 && n <= len(candidates) {
				return candidates[n-1], nil
			}
		} else if d, err := SelectDevice(candidates, answer); err == nil && answer != "" {
			return d, nil
		}
		fmt.Fprintf(p.Out, "%q is not one of the listed devices\n", answer)
	}
}
