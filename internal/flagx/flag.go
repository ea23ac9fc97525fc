// Package flagx lets several components parse their own flags out of one
// shared os.Args without tripping over each other's definitions.
package flagx

import (
	"flag"
	"os"
	"strings"
)

// FilterArgs returns the subset of args that belongs to allowedFlags, keeping
// their values.
//
// Supported formats:
//  1. Flag and value as separate arguments:  -c conf.json
//  2. Flag and value combined with '=':      -config=conf.json
//
// A value is taken from the next argument only when it does not itself look
// like a flag. The result is never nil.
func FilterArgs(args []string, allowedFlags []string) []string {
	allowed := make(map[string]struct{}, len(allowedFlags))
	for _, f := range allowedFlags {
		allowed[f] = struct{}{}
	}

	filtered := make([]string, 0, len(args))

	for i := 0; i < len(args); i++ {
		arg := args[i]

		if strings.HasPrefix(arg, "-") && strings.Contains(arg, "=") {
			name := strings.SplitN(arg, "=", 2)[0]
			if _, ok := allowed[name]; ok {
				filtered = append(filtered, arg)
			}
			continue
		}

		if _, ok := allowed[arg]; ok {
			filtered = append(filtered, arg)
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				filtered = append(filtered, args[i+1])
				i++
			}
		}
	}

	return filtered
}

// NewFlagSet returns a ContinueOnError flag set and the filtered process
// arguments it should parse. Callers register the flags named in allowed
// and then call fs.Parse(args).
func NewFlagSet(name string, allowed []string) (fs *flag.FlagSet, args []string) {
	fs = flag.NewFlagSet(name, flag.ContinueOnError)
	return fs, FilterArgs(os.Args[1:], allowed)
}

// ConfigFile returns the JSON config path passed via -c or -config, or an
// empty string when neither is present.
func ConfigFile() string {
	var config string

	fs, args := NewFlagSet("json", []string{"-c", "-config"})
	fs.StringVar(&config, "config", "", "Path to config file")
	fs.StringVar(&config, "c", "", "Path to config file (short)")
	_ = fs.Parse(args)

	return config
}
