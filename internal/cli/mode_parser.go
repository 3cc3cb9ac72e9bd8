package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
)

const (
	ModeDispatch = "dispatch-service"
	ModeAdmin    = "admin-service"
	ModeRepair   = "repair"
)

// isKnownMode checks if the provided mode name is known.
func isKnownMode(s string) (string, bool) {
	switch s {
	case ModeDispatch, "dispatch", "d":
		return ModeDispatch, true
	case ModeAdmin, "admin", "a":
		return ModeAdmin, true
	case ModeRepair, "repair-tool", "r":
		return ModeRepair, true
	default:
		return "", false
	}
}

// ParseMode supports:
//
//	--mode=<value>
//	<value> (subcommand shorthand), e.g., `dispatch-service --max-concurrent=150`
func ParseMode(args []string) (string, []string, error) {
	var mode string
	var out []string

	for i := range args {
		arg := args[i]
		if after, ok := strings.CutPrefix(arg, "--mode="); ok {
			mode = after
			continue
		}

		if mode == "" {
			if m, ok := isKnownMode(arg); ok {
				mode = m
				continue
			}
		}
		out = append(out, arg)
	}

	if mode == "" {
		return "", out, errors.New("no mode specified: use --mode=<service>")
	}

	if m, ok := isKnownMode(mode); ok {
		mode = m
	}

	return mode, out, nil
}

// PrintUsage prints the usage information with examples.
func PrintUsage(w io.Writer) {
	fmt.Fprint(w, "\033[36m") // cyan

	fmt.Fprintln(w, `Usage:
  ./booth-dispatch --mode=<service> [flags]

Services (modes):
  dispatch-service             Booth queues, ride lifecycle, and realtime fan-out
  admin-service                Read-only admin query API
  repair                       One-shot repair pass over all booth queues

Examples:
  ./booth-dispatch --mode=dispatch-service --max-concurrent=150
  ./booth-dispatch --mode=admin-service --max-concurrent=50
  ./booth-dispatch --mode=repair`)

	fmt.Fprint(w, "\033[0m") // reset
}

// AttachUsage wires a concise per-mode usage to a FlagSet.
func AttachUsage(fs *flag.FlagSet, mode string) {
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: ./booth-dispatch --mode=%s [flags]\n", mode)
		fs.PrintDefaults()
	}
}
