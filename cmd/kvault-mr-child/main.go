// Command kvault-mr-child is the disposable subprocess kvaultd execs to
// load and run a user-supplied map/reduce plugin. It is never invoked
// directly by an operator; internal/mapreduce.Executor is its only caller.
//
// Modes:
//
//	kvault-mr-child -validate <path>   loads the plugin and checks for the
//	                                    Map/Reduce symbols; exit 0 on success.
//	kvault-mr-child -run <path>        loads the plugin, streams key/value
//	                                    pairs from stdin (plugin.WriteRecord
//	                                    framing), runs map over each, reduce
//	                                    over the results, and writes the raw
//	                                    reduced bytes to stdout.
//
// Keeping plugin.Open confined to this process is the point: a panic or a
// bad symbol in the plugin's init() can only ever crash this child, never
// kvaultd itself.
package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"plugin"

	mrplugin "github.com/dreamware/kvault/internal/mapreduce/plugin"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: kvault-mr-child -validate|-run <path-to-so>")
		os.Exit(2)
	}
	mode, path := os.Args[1], os.Args[2]

	mapFn, reduceFn, err := load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	switch mode {
	case "-validate":
		// Loading and symbol resolution already happened in load; nothing
		// further to do.
	case "-run":
		if err := run(mapFn, reduceFn); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	default:
		fmt.Fprintf(os.Stderr, "unknown mode %q\n", mode)
		os.Exit(2)
	}
}

func load(path string) (mrplugin.MapFunc, mrplugin.ReduceFunc, error) {
	p, err := plugin.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("kvault-mr-child: opening plugin: %w", err)
	}

	mapSym, err := p.Lookup(mrplugin.SymbolMap)
	if err != nil {
		return nil, nil, fmt.Errorf("kvault-mr-child: looking up %s: %w", mrplugin.SymbolMap, err)
	}
	mapFn, ok := mapSym.(func(string, []byte) []byte)
	if !ok {
		return nil, nil, fmt.Errorf("kvault-mr-child: %s has the wrong signature", mrplugin.SymbolMap)
	}

	reduceSym, err := p.Lookup(mrplugin.SymbolReduce)
	if err != nil {
		return nil, nil, fmt.Errorf("kvault-mr-child: looking up %s: %w", mrplugin.SymbolReduce, err)
	}
	reduceFn, ok := reduceSym.(func([][]byte) []byte)
	if !ok {
		return nil, nil, fmt.Errorf("kvault-mr-child: %s has the wrong signature", mrplugin.SymbolReduce)
	}

	return mapFn, reduceFn, nil
}

func run(mapFn mrplugin.MapFunc, reduceFn mrplugin.ReduceFunc) error {
	r := bufio.NewReader(os.Stdin)
	var mapped [][]byte
	for {
		key, value, err := mrplugin.ReadRecord(r)
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("kvault-mr-child: reading pair: %w", err)
		}
		mapped = append(mapped, mapFn(key, value))
	}

	result := reduceFn(mapped)
	if _, err := os.Stdout.Write(result); err != nil {
		return fmt.Errorf("kvault-mr-child: writing result: %w", err)
	}
	return nil
}
