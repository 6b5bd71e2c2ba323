package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/cellc/cellc/pkg/analyze"
	"github.com/cellc/cellc/pkg/cellc"
	"github.com/cellc/cellc/pkg/fixture"
	"github.com/cellc/cellc/pkg/frame"
	"github.com/cellc/cellc/pkg/lower"
	"github.com/cellc/cellc/pkg/model"
	"github.com/cellc/cellc/pkg/version"
)

var (
	outputFile   string
	optimize     bool
	debug        bool
	backend      string
	listBackends bool
	visualize    bool
	showVersion  bool
	showVersionF bool
	defines      []string
)

var rootCmd = &cobra.Command{
	Use:   "cellc [model.json]",
	Short: "ODE model compiler " + version.GetVersion(),
	Long: `cellc compiles a declarative ODE model into executable machine
code: a bytecode reference interpreter, native AMD64/AArch64 routines,
or WebAssembly text.

BACKENDS:
  bytecode - portable reference interpreter (default)
  native   - native code for the host architecture
  amd64    - native AMD64 machine code
  arm64    - native AArch64 machine code
  wasm     - WebAssembly text (.wat)

EXAMPLES:
  cellc model.json                     # compile with the bytecode backend
  cellc model.json -b native -o out    # compile native code for this host
  cellc model.json -b wasm             # print WebAssembly text to stdout
  cellc model.json --define k=-3.5     # override a parameter value
  cellc --list-backends`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if showVersion {
			fmt.Println(version.GetVersion())
			return
		}
		if showVersionF {
			fmt.Println(version.GetFullVersion())
			return
		}
		if listBackends {
			fmt.Println("Available backends:")
			for _, b := range []cellc.Backend{
				cellc.BackendBytecode, cellc.BackendNative,
				cellc.BackendAMD64, cellc.BackendARM64, cellc.BackendWasm,
			} {
				fmt.Printf("  - %s\n", b)
			}
			return
		}
		if len(args) == 0 {
			cmd.Help()
			os.Exit(0)
		}
		if err := run(args[0]); err != nil {
			fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
			os.Exit(1)
		}
	},
}

func init() {
	defaultBackend := os.Getenv("CELLC_BACKEND")
	if defaultBackend == "" {
		defaultBackend = string(cellc.BackendBytecode)
	}

	rootCmd.Flags().BoolVarP(&showVersion, "version", "v", false, "show version")
	rootCmd.Flags().BoolVar(&showVersionF, "version-full", false, "show full version info")
	rootCmd.Flags().StringVarP(&outputFile, "output", "o", "", "output file for the WebAssembly text or the JSON summary (default: stdout)")
	rootCmd.Flags().BoolVarP(&optimize, "optimize", "O", false, "on the amd64/arm64 backends, hold only the analyzer's bufferable set in the XMM4/XMM5 (D4/D5) cache instead of every saveable value (the two peepholes in pkg/lower always run regardless)")
	rootCmd.Flags().BoolVarP(&debug, "debug", "d", false, "print compilation details")
	rootCmd.Flags().StringVarP(&backend, "backend", "b", defaultBackend, "target backend (bytecode, native, amd64, arm64, wasm)")
	rootCmd.Flags().BoolVar(&listBackends, "list-backends", false, "list available backends")
	rootCmd.Flags().BoolVar(&visualize, "viz", false, "dump the lowered IR and analyzer sets to stdout")
	rootCmd.Flags().StringArrayVar(&defines, "define", nil, "override a parameter value, name=value (repeatable)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("Error: %v", err))
		os.Exit(1)
	}
}

func run(sourceFile string) error {
	if debug {
		fmt.Printf("Compiling %s (backend=%s)...\n", sourceFile, backend)
	}

	data, err := os.ReadFile(sourceFile)
	if err != nil {
		return fmt.Errorf("reading model file: %w", err)
	}
	m, err := fixture.Decode(data)
	if err != nil {
		return err
	}
	if err := applyDefines(m, defines); err != nil {
		return err
	}

	if visualize {
		dumpVisualization(m)
	}

	h, err := cellc.CompileWithOptions(m, cellc.Backend(backend), optimize)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}
	defer cellc.Free(h)

	if debug {
		fmt.Printf("states=%d params=%d observables=%d\n", h.CountStates(), h.CountParams(), h.CountObs())
	}

	if src, ok := h.WATSource(); ok {
		return writeOutput(outputFile, []byte(src))
	}

	summary := map[string]any{
		"backend":        string(h.Backend()),
		"states":         h.CountStates(),
		"params":         h.CountParams(),
		"observables":    h.CountObs(),
		"initial_states": h.InitialStates(),
		"params_values":  h.Params(),
	}
	encoded, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	return writeOutput(outputFile, encoded)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		fmt.Println(string(data))
		return nil
	}
	return os.WriteFile(path, data, 0o644)
}

func applyDefines(m *model.Model, defines []string) error {
	for _, d := range defines {
		name, value, ok := strings.Cut(d, "=")
		if !ok {
			return fmt.Errorf("--define %q: expected name=value", d)
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("--define %q: %w", d, err)
		}
		found := false
		for i := range m.Params {
			if m.Params[i].Name == name {
				m.Params[i].Value = v
				found = true
				break
			}
		}
		if !found {
			return fmt.Errorf("--define %q: no such parameter %q", d, name)
		}
	}
	return nil
}

func dumpVisualization(m *model.Model) {
	prog := lower.Build(m)
	fmt.Println(color.CyanString("-- IR --"))
	for i, instr := range prog.Code {
		fmt.Printf("%3d: %s\n", i, instr)
	}

	events := analyze.BuildEvents(prog)
	saveable := analyze.FindSaveable(events)
	bufferable := analyze.FindBufferable(events)
	names := prog.Frame.DebugNames()

	fmt.Println(color.CyanString("-- saveable --"))
	for w := range saveable {
		fmt.Println(color.YellowString(labelWord(w, names)))
	}
	fmt.Println(color.CyanString("-- bufferable --"))
	for w := range bufferable {
		fmt.Println(color.GreenString(labelWord(w, names)))
	}
}

func labelWord(w frame.Word, names map[int]string) string {
	if name, ok := names[w.Index]; ok {
		return fmt.Sprintf("%s (%s)", w, name)
	}
	return w.String()
}
