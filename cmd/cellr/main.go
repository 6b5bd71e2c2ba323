// Command cellr is an interactive console for poking at a compiled
// model: load it, inspect states/params, and step the independent
// variable forward with small Lua snippets between calls.
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"golang.org/x/term"

	"github.com/cellc/cellc/pkg/cellc"
	"github.com/cellc/cellc/pkg/fixture"
	"github.com/cellc/cellc/pkg/readline"
)

// REPL holds the loaded model, its current working point (u, p, t),
// and the Lua state used to compute successive t values.
type REPL struct {
	reader  *readline.Reader
	lua     *lua.LState
	backend cellc.Backend

	handle *cellc.Handle
	path   string

	u []float64
	p []float64
	t float64
}

func New() *REPL {
	homeDir, _ := os.UserHomeDir()
	historyFile := filepath.Join(homeDir, ".cellc_history")

	reader := readline.NewReader(&readline.Config{
		HistoryFile: historyFile,
		MaxHistory:  1000,
	})

	return &REPL{
		reader:  reader,
		lua:     lua.NewState(),
		backend: cellc.BackendBytecode,
	}
}

func (r *REPL) Close() {
	r.lua.Close()
	if r.handle != nil {
		cellc.Free(r.handle)
	}
}

func (r *REPL) printHelp() {
	fmt.Println("cellc interactive console")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  :load <model.json>   - compile and load a model fixture")
	fmt.Println("  :backend <name>      - set backend (bytecode, native, amd64, arm64, wasm), reloads current model")
	fmt.Println("  :backends            - list available backends")
	fmt.Println("  :state               - print the current u, p, t working point")
	fmt.Println("  :set u <i> <value>   - set a state component")
	fmt.Println("  :set p <i> <value>   - set a parameter")
	fmt.Println("  :set t <value>       - set the independent variable directly")
	fmt.Println("  :step <lua-expr>     - set t to a Lua expression evaluated with t in scope (e.g. :step t+0.1)")
	fmt.Println("  :call                - evaluate du at the current (u, p, t)")
	fmt.Println("  :obs                 - evaluate the observables at the current (u, p, t)")
	fmt.Println("  :history             - show command history")
	fmt.Println("  :search <text>       - search history")
	fmt.Println("  :clear               - clear the screen")
	fmt.Println("  :help                - show this help")
	fmt.Println("  :exit                - exit")
	fmt.Println()
}

func (r *REPL) Run() {
	if term.IsTerminal(int(os.Stdin.Fd())) {
		r.printHelp()
	}

	for {
		prompt := fmt.Sprintf("cellr[%s]> ", r.backend)
		r.reader.SetPrompt(prompt)

		input, err := r.reader.ReadLine()
		if err != nil {
			fmt.Println("\nGoodbye!")
			return
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, ":") {
			r.handleCommand(input)
			continue
		}

		fmt.Println("unrecognized input; commands start with ':' (try :help)")
	}
}

func (r *REPL) handleCommand(cmd string) {
	parts := strings.Fields(cmd)
	switch parts[0] {
	case ":exit", ":quit", ":q":
		fmt.Println("Goodbye!")
		r.Close()
		os.Exit(0)

	case ":help", ":h":
		r.printHelp()

	case ":clear", ":cls":
		fmt.Print("\033[2J\033[H")

	case ":history":
		for i, h := range r.reader.GetHistory() {
			fmt.Printf("  %d: %s\n", i+1, h)
		}

	case ":search":
		if len(parts) < 2 {
			fmt.Println("Usage: :search <text>")
			return
		}
		for i, h := range r.reader.SearchHistory(strings.Join(parts[1:], " ")) {
			fmt.Printf("  %d: %s\n", i+1, h)
		}

	case ":backends":
		fmt.Println("Available backends:")
		for _, b := range []cellc.Backend{
			cellc.BackendBytecode, cellc.BackendNative,
			cellc.BackendAMD64, cellc.BackendARM64, cellc.BackendWasm,
		} {
			fmt.Printf("  - %s\n", b)
		}

	case ":backend":
		if len(parts) < 2 {
			fmt.Printf("Current backend: %s\n", r.backend)
			return
		}
		r.backend = cellc.Backend(parts[1])
		if r.path != "" {
			r.load(r.path)
		}

	case ":load":
		if len(parts) < 2 {
			fmt.Println("Usage: :load <model.json>")
			return
		}
		r.load(parts[1])

	case ":state":
		r.printState()

	case ":set":
		r.handleSet(parts[1:])

	case ":step":
		if len(parts) < 2 {
			fmt.Println("Usage: :step <lua-expr>")
			return
		}
		r.step(strings.Join(parts[1:], " "))

	case ":call":
		r.call()

	case ":obs":
		r.obs()

	default:
		fmt.Printf("Unknown command: %s (try :help)\n", parts[0])
	}
}

func (r *REPL) load(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		fmt.Printf("error reading %s: %v\n", path, err)
		return
	}
	m, err := fixture.Decode(data)
	if err != nil {
		fmt.Printf("error decoding %s: %v\n", path, err)
		return
	}

	h, err := cellc.Compile(m, r.backend)
	if err != nil {
		fmt.Printf("compile error: %v\n", err)
		return
	}
	if r.handle != nil {
		cellc.Free(r.handle)
	}
	r.handle = h
	r.path = path
	r.u = h.InitialStates()
	r.p = h.Params()
	r.t = 0

	fmt.Printf("loaded %s: states=%d params=%d observables=%d\n", path, h.CountStates(), h.CountParams(), h.CountObs())
}

func (r *REPL) printState() {
	if r.handle == nil {
		fmt.Println("no model loaded (use :load)")
		return
	}
	fmt.Printf("u = %v\np = %v\nt = %v\n", r.u, r.p, r.t)
}

func (r *REPL) handleSet(args []string) {
	if r.handle == nil {
		fmt.Println("no model loaded (use :load)")
		return
	}
	if len(args) < 2 {
		fmt.Println("Usage: :set u <i> <value> | :set p <i> <value> | :set t <value>")
		return
	}
	if args[0] == "t" {
		v, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Printf("invalid value: %v\n", err)
			return
		}
		r.t = v
		return
	}
	if len(args) < 3 {
		fmt.Println("Usage: :set u <i> <value> | :set p <i> <value>")
		return
	}
	i, err := strconv.Atoi(args[1])
	if err != nil {
		fmt.Printf("invalid index: %v\n", err)
		return
	}
	v, err := strconv.ParseFloat(args[2], 64)
	if err != nil {
		fmt.Printf("invalid value: %v\n", err)
		return
	}
	var slice []float64
	switch args[0] {
	case "u":
		slice = r.u
	case "p":
		slice = r.p
	default:
		fmt.Println("first argument must be u, p or t")
		return
	}
	if i < 0 || i >= len(slice) {
		fmt.Printf("index %d out of range (len %d)\n", i, len(slice))
		return
	}
	slice[i] = v
}

// step evaluates a Lua expression with the current t bound as a global
// and assigns the (numeric) result back to t, so a user can advance
// the independent variable with e.g. ":step t+0.1" between :call's.
func (r *REPL) step(expr string) {
	r.lua.SetGlobal("t", lua.LNumber(r.t))
	if err := r.lua.DoString("return (" + expr + ")"); err != nil {
		fmt.Printf("lua error: %v\n", err)
		return
	}
	result := r.lua.Get(-1)
	r.lua.Pop(1)
	n, ok := result.(lua.LNumber)
	if !ok {
		fmt.Printf("expression did not evaluate to a number: %v\n", result)
		return
	}
	r.t = float64(n)
	fmt.Printf("t = %v\n", r.t)
}

func (r *REPL) call() {
	if r.handle == nil {
		fmt.Println("no model loaded (use :load)")
		return
	}
	du := make([]float64, r.handle.CountStates())
	if !r.handle.Call(du, r.u, r.p, r.t) {
		fmt.Println("call rejected (shape mismatch)")
		return
	}
	fmt.Printf("du = %v\n", du)
}

func (r *REPL) obs() {
	if r.handle == nil {
		fmt.Println("no model loaded (use :load)")
		return
	}
	dobs := make([]float64, r.handle.CountObs())
	if !r.handle.CallObs(dobs, r.u, r.p, r.t) {
		fmt.Println("call rejected (shape mismatch)")
		return
	}
	fmt.Printf("obs = %v\n", dobs)
}

func main() {
	repl := New()
	defer repl.Close()
	repl.Run()
}
