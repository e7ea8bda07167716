// Command rasqalctl is the host-facing CLI over rasqal.Runner: run a QIR
// module against a backend, or inspect its parsed structure.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v2"

	"github.com/oqc-community/rasqal"
	"github.com/oqc-community/rasqal/ir"
	"github.com/oqc-community/rasqal/rasqaltest"
	"github.com/oqc-community/rasqal/value"
)

func main() {
	app := &cli.App{
		Name:  "rasqalctl",
		Usage: "execute and inspect QIR modules against the symbolic executor",
		Commands: []*cli.Command{
			runCommand(),
			inspectCommand(),
			infoCommand(),
		},
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "execute a .ll or .bc module's entry point",
		ArgsUsage: "<file.ll|file.bc>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{Name: "arg", Usage: "a host argument to pass the entry point (repeatable)"},
			&cli.IntFlag{Name: "step-limit", Usage: "abort with StepLimitExceeded after this many instructions (0 = unbounded)"},
			&cli.BoolFlag{Name: "trace-graphs"},
			&cli.BoolFlag{Name: "trace-projections"},
			&cli.BoolFlag{Name: "trace-runtime"},
			&cli.StringFlag{Name: "log-file", Usage: "append trace output here instead of stdout"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: rasqalctl run <file.ll|file.bc>", 1)
			}
			args, err := parseArgs(c.StringSlice("arg"))
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}

			// No real backend is wired into this binary (concrete
			// simulators are an external collaborator); the
			// CLI demonstrates the orchestrator against an always-capable
			// backend that returns an empty shot distribution.
			backend := rasqaltest.NewMockBackend(rasqaltest.NewMockBuilder(), rasqal.Distribution{})

			runner := rasqal.NewRunner(backend).
				StepCountLimit(c.Int("step-limit")).
				LogFile(c.String("log-file"))
			if c.Bool("trace-graphs") {
				runner.TraceGraphs()
			}
			if c.Bool("trace-projections") {
				runner.TraceProjections()
			}
			if c.Bool("trace-runtime") {
				runner.TraceRuntime()
			}

			result, err := runner.Run(context.Background(), c.Args().First(), args)
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			printResult(result)
			return nil
		},
	}
}

func inspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "print a parsed module's functions, blocks, and entry points",
		ArgsUsage: "<file.ll|file.bc>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return cli.Exit("usage: rasqalctl inspect <file.ll|file.bc>", 1)
			}
			mod, err := ir.Load(c.Args().First())
			if err != nil {
				return cli.Exit(err.Error(), 1)
			}
			printModule(mod)
			return nil
		},
	}
}

func infoCommand() *cli.Command {
	return &cli.Command{
		Name:  "info",
		Usage: "print the supported opcode and intrinsic surface",
		Action: func(c *cli.Context) error {
			fmt.Println("rasqal: a symbolic QIR executor")
			fmt.Println()
			fmt.Println("classical opcodes:")
			printSorted(setKeys(ir.ClassicalOpcodes))
			fmt.Println("quantum gate intrinsics:")
			printSorted(setKeys(ir.QuantumGateIntrinsics))
			fmt.Println("runtime intrinsics:")
			printSorted(setKeys(ir.RuntimeIntrinsics))
			return nil
		},
	}
}

func printModule(mod *ir.Module) {
	entry := map[string]bool{}
	for _, f := range mod.EntryPoints() {
		entry[f.Name] = true
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Function", "Entry Point", "Blocks", "Required Qubits", "Required Results"})
	for name, f := range mod.Functions {
		table.Append([]string{
			name,
			strconv.FormatBool(entry[name]),
			strconv.Itoa(len(f.Blocks)),
			strconv.Itoa(f.RequiredQubits()),
			strconv.Itoa(f.RequiredResults()),
		})
	}
	table.Render()
}

func printResult(r rasqal.Result) {
	if r.BaseProfile {
		fmt.Println("result distribution:")
		for bits, count := range r.Distribution {
			fmt.Printf("  %s: %d\n", bits, count)
		}
		return
	}
	fmt.Printf("result: %v\n", r.Value)
}

// parseArgs converts --arg strings into host Values: "true"/"false" as
// Bool, anything parseable as an integer or float as such, everything
// else as a StringRef-less raw string the entry point receives as-is via
// a classical Pointer (strings need heap registration the CLI does not
// perform on the caller's behalf).
func parseArgs(raw []string) ([]value.Value, error) {
	out := make([]value.Value, 0, len(raw))
	for _, a := range raw {
		switch strings.ToLower(a) {
		case "true":
			out = append(out, value.Bool{V: true})
			continue
		case "false":
			out = append(out, value.Bool{V: false})
			continue
		}
		if n, err := strconv.ParseInt(a, 10, 64); err == nil {
			out = append(out, value.Int{Width: value.W64, V: n})
			continue
		}
		if f, err := strconv.ParseFloat(a, 64); err == nil {
			out = append(out, value.Float{V: f})
			continue
		}
		out = append(out, value.Pointer{Target: value.Bytes{Data: a}})
	}
	return out, nil
}

func setKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func printSorted(names []string) {
	for i := 0; i < len(names); i++ {
		for j := i + 1; j < len(names); j++ {
			if names[j] < names[i] {
				names[i], names[j] = names[j], names[i]
			}
		}
	}
	for _, n := range names {
		fmt.Printf("  %s\n", n)
	}
}
