package main

import (
	"os"
	"strings"

	"storytree/internal/cli"
	"storytree/internal/model"
)

func isPosition(s string) bool {
	_, err := model.ParsePosition(strings.TrimSpace(s))
	return err == nil
}

// rewriteDirectCardLookupArgs turns `storytree <d.f.i>` into `storytree nodes show <d.f.i>`.
//
// Cobra treats the first non-flag token as a subcommand, so argv is rewritten before parsing.
// Persistent flags may come first (e.g. `storytree --dir ... 1.0.0`), so this finds the first
// positional token rather than argv[1].
func rewriteDirectCardLookupArgs(argv []string) []string {
	if len(argv) < 2 {
		return argv
	}

	// Unknown flags are skipped without consuming a value, so a position is never swallowed.
	valueFlags := map[string]bool{
		"--dir":       true,
		"--story":     true,
		"--actor":     true,
		"--format":    true,
		"--log-level": true,
	}
	boolFlags := map[string]bool{
		"--pretty": true,
	}

	rewrite := func(at int) []string {
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:at]...)
		out = append(out, "nodes", "show")
		return append(out, argv[at:]...)
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) && isPosition(argv[i+1]) {
				return rewrite(i + 1)
			}
			return argv
		}

		if strings.HasPrefix(a, "-") {
			switch {
			case strings.Contains(a, "="), boolFlags[a]:
			case valueFlags[a]:
				i++
			}
			continue
		}

		if isPosition(a) {
			return rewrite(i)
		}
		return argv
	}

	return argv
}

func main() {
	os.Args = rewriteDirectCardLookupArgs(os.Args)

	cmd := cli.NewRootCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
