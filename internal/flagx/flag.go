// Package flagx lets several config layers share os.Args: each layer filters
// out the flags it owns before handing them to its own flag.FlagSet.
package flagx

import (
	"flag"
	"io"
	"os"
	"strings"
)

// FilterArgs keeps only allowedFlags from args, together with their values.
// Both "-d dsn" and "-d=dsn" forms are recognised. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name, _, _ := strings.Cut(arg, "=")
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			// a following non-flag argument is this flag's value
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// ConfigEnvVar names the environment variable consulted when no -c/-config
// flag is given.
const ConfigEnvVar = "IDENTITY_CONFIG"

// JsonConfigFlags returns the JSON config file path passed via -c or -config.
// When neither flag is present it falls back to $IDENTITY_CONFIG. An empty
// string means no file should be loaded.
//
// Only these flags are parsed; other arguments are ignored so that each
// config layer can parse its own flags independently.
func JsonConfigFlags() string {
	var config string

	args := FilterArgs(os.Args[1:], []string{"-c", "-config"})

	fs := flag.NewFlagSet("json", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	if config == "" {
		config = strings.TrimSpace(os.Getenv(ConfigEnvVar))
	}

	return config
}

// Positional drops valueFlags (and their values) from args, in both the
// "-a v" and "-a=v" forms, and returns what is left in order.
func Positional(args []string, valueFlags []string) []string {
	known := make(map[string]struct{}, len(valueFlags))
	for _, f := range valueFlags {
		known[f] = struct{}{}
	}

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		name, _, hasValue := strings.Cut(arg, "=")
		if _, ok := known[name]; ok && strings.HasPrefix(arg, "-") {
			if !hasValue && i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
			continue
		}
		out = append(out, arg)
	}
	return out
}
