// Command ciso compresses optical-disc images to CISO containers and
// back, or checks an existing container's structural integrity.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/falk/ciso-go/pkg/ciso"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}

func exitCodeFor(err error) int {
	if _, ok := err.(usageError); ok {
		return 1
	}
	return 2
}

type usageError string

func (e usageError) Error() string { return string(e) }

func run(args []string) error {
	if len(args) == 0 {
		return usageError(usage())
	}

	input := args[0]
	rest := args[1:]
	ext := strings.ToLower(filepath.Ext(input))

	switch ext {
	case ".iso":
		return runCompress(input, rest)
	case ".cso":
		return runDecompress(input, rest)
	default:
		return usageError("Input must be .iso or .cso")
	}
}

func runCompress(input string, args []string) error {
	var output string
	level := 6

	i := 0
	for i < len(args) {
		switch args[i] {
		case "--fast":
			level = 1
			i++
		case "--optimal":
			level = 6
			i++
		case "--best":
			level = 9
			i++
		case "--level":
			if i+1 >= len(args) {
				return usageError("--level requires a value")
			}
			v, err := parseLevel(args[i+1])
			if err != nil {
				return usageError(err.Error())
			}
			level = v
			i += 2
		default:
			if strings.HasPrefix(args[i], "--") {
				return usageError(fmt.Sprintf("Unknown option %q", args[i]))
			}
			if output != "" {
				return usageError("Too many positional arguments")
			}
			output = args[i]
			i++
		}
	}

	if output == "" {
		output = defaultOutput(input, "cso")
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Printf("Compress %s -> %s (level %d)\n", input, output, level)
	if err := ciso.Compress(in, out, level); err != nil {
		return err
	}
	fmt.Println("Done.")
	return nil
}

func runDecompress(input string, args []string) error {
	check := false
	full := false
	var output string

	for _, a := range args {
		switch a {
		case "--check":
			check = true
		case "--full":
			full = true
		default:
			if strings.HasPrefix(a, "--") {
				return usageError(fmt.Sprintf("Unknown option %q", a))
			}
			if output != "" {
				return usageError("Too many positional arguments")
			}
			output = a
		}
	}

	if full && !check {
		return usageError("--full can only be used with --check")
	}

	in, err := os.Open(input)
	if err != nil {
		return err
	}
	defer in.Close()

	if check {
		if len(args) > 2 || output != "" {
			return usageError("Too many arguments for --check")
		}
		fmt.Printf("Check %s\n", input)
		if err := ciso.Check(in, full); err != nil {
			return err
		}
		fmt.Println("OK.")
		return nil
	}

	if output == "" {
		output = defaultOutput(input, "iso")
	}
	out, err := os.Create(output)
	if err != nil {
		return err
	}
	defer out.Close()

	fmt.Printf("Decompress %s -> %s\n", input, output)
	if err := ciso.Decompress(in, out); err != nil {
		return err
	}
	fmt.Println("Done.")
	return nil
}

func parseLevel(s string) (int, error) {
	var v int
	if _, err := fmt.Sscanf(s, "%d", &v); err != nil {
		return 0, fmt.Errorf("invalid --level value %q", s)
	}
	if v < 1 || v > 9 {
		return 0, fmt.Errorf("--level must be 1..9, got %d", v)
	}
	return v, nil
}

func defaultOutput(input, ext string) string {
	dir := filepath.Dir(input)
	stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	return filepath.Join(dir, stem+"."+ext)
}

func usage() string {
	return `Usage:
  ciso <input.iso> [output.cso] [--level 1..9 | --fast | --optimal | --best]
  ciso <input.cso> [output.iso]
  ciso <input.cso> --check [--full]

Rules:
  .iso -> compress
  .cso -> decompress

Defaults:
  compress level = 6 (--optimal)
`
}
