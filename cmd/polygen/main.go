package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/xyproto/env/v2"

	"github.com/polygen-dev/polygen/internal/codegen"
	"github.com/polygen-dev/polygen/internal/diagnostic"
	"github.com/polygen-dev/polygen/internal/scop"
)

const usage = `polygen - polyhedral CPU code generator

Usage:
  polygen gen [options] <file.c> <file.scop>   Rewrite the scop region of file.c
  polygen check <file.scop>                    Parse and validate a scop description

Options:
  -o <path>      Output path (default: file.polygen.c)
  -no-openmp     Do not annotate parallel loops with OpenMP pragmas

Environment:
  POLYGEN_OPENMP   Set to 0/false to disable OpenMP annotation by default
  POLYGEN_OUTPUT   Default output path when -o is not given

Examples:
  polygen gen vadd.c vadd.scop             Write vadd.polygen.c with omp pragmas
  polygen gen -no-openmp vadd.c vadd.scop  Generate plain loops
  polygen check vadd.scop                  Validate the description only
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}

	command := os.Args[1]

	switch command {
	case "gen":
		handleGen(os.Args[2:])
	case "check":
		handleCheck(os.Args[2:])
	case "help", "--help", "-h":
		fmt.Print(usage)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		fmt.Fprint(os.Stderr, usage)
		os.Exit(1)
	}
}

func handleGen(args []string) {
	opts := codegen.Options{
		OpenMP: true,
		Output: env.Str("POLYGEN_OUTPUT"),
	}
	if env.Has("POLYGEN_OPENMP") {
		opts.OpenMP = env.Bool("POLYGEN_OPENMP")
	}

	var files []string
	for i := 0; i < len(args); i++ {
		switch arg := args[i]; arg {
		case "-no-openmp":
			opts.OpenMP = false
		case "-o":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "Error: -o needs a path")
				os.Exit(1)
			}
			i++
			opts.Output = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				fmt.Fprintf(os.Stderr, "Unknown option: %s\n", arg)
				os.Exit(1)
			}
			files = append(files, arg)
		}
	}
	if len(files) != 2 {
		fmt.Fprintln(os.Stderr, "Error: gen needs a C file and a scop description")
		os.Exit(1)
	}
	cFile, scopFile := files[0], files[1]

	s, err := scop.ParseFile(scopFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}

	outPath, err := codegen.Generate(cFile, s, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", outPath)
}

func handleCheck(args []string) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "Error: no scop description specified")
		os.Exit(1)
	}
	filePath := args[0]

	source, err := os.ReadFile(filePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading file: %s\n", err)
		os.Exit(1)
	}

	s, diags := scop.Parse(string(source))
	if diags.HasErrors() {
		fmt.Fprintln(os.Stderr, diags.Format(filePath))
		os.Exit(1)
	}
	for _, d := range diags.All() {
		if d.Severity == diagnostic.Warning {
			fmt.Printf("%s:%d:%d: warning: %s\n", filePath, d.Line, d.Column, d.Message)
		}
	}
	fmt.Printf("No errors found: %d statement(s), %d array(s), %d warning(s).\n",
		len(s.Stmts), len(s.Arrays), diags.Count())
}
