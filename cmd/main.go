// Command corestage is an interactive/batch shell over the AudioEngine
// façade, adapted from the teacher's main.go: the same readline/isatty
// terminal-detection and batch-vs-interactive dispatch, driving transport
// and track commands instead of step-sequencer pattern edits.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/mattn/go-isatty"

	"github.com/overtone-labs/corestage/engine"
	"github.com/overtone-labs/corestage/hostaudio/realtime"
)

func isTerminal() bool {
	return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
}

// processBatchInput reads and executes commands from reader, echoing each
// non-comment line for progress feedback, the same shape as the teacher's
// processBatchInput.
func processBatchInput(reader io.Reader, handler *shellHandler) (success, shouldExit bool) {
	scanner := bufio.NewScanner(reader)
	hadErrors := false

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "#") {
			fmt.Println(line)
			continue
		}
		if strings.ToLower(line) == "exit" || strings.ToLower(line) == "quit" {
			shouldExit = true
			continue
		}

		fmt.Println(">", line)
		if err := handler.ProcessCommand(line); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			hadErrors = true
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading input: %v\n", err)
		return false, shouldExit
	}
	return !hadErrors, shouldExit
}

func main() {
	scriptFile := flag.String("script", "", "execute commands from file")
	flag.Parse()

	ctx, err := realtime.New()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening audio device: %v\n", err)
		os.Exit(1)
	}

	eng := engine.New(ctx)

	cleanup := func() {
		eng.Stop()
		_ = eng.Dispose()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		fmt.Println("\nShutting down gracefully...")
		cleanup()
		os.Exit(0)
	}()

	fmt.Println("Engine ready! Type 'help' for commands, 'quit' to exit.")
	fmt.Println()

	handler := newShellHandler(eng)

	if *scriptFile != "" {
		f, err := os.Open(*scriptFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error opening script file: %v\n", err)
			os.Exit(2)
		}
		defer f.Close()

		success, shouldExit := processBatchInput(f, handler)
		if shouldExit {
			cleanup()
			if success {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Println("\nScript completed. Engine continues running. Press Ctrl+C to exit.")
		select {}
	}

	if isTerminal() {
		if err := readLoop(os.Stdin, handler); err != nil {
			fmt.Fprintf(os.Stderr, "Error reading commands: %v\n", err)
			os.Exit(1)
		}
	} else {
		success, shouldExit := processBatchInput(os.Stdin, handler)
		if shouldExit {
			cleanup()
			if success {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Println("\nBatch commands completed. Engine continues running. Press Ctrl+C to exit.")
		select {}
	}

	fmt.Println("Goodbye!")
}

// readLoop drives an interactive readline session, falling back to the
// handler's own bufio ReadLoop if readline can't attach to the terminal.
func readLoop(in io.Reader, handler *shellHandler) error {
	rl, err := readline.NewEx(&readline.Config{Prompt: "> "})
	if err != nil {
		return handler.ReadLoop(in)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err != nil {
			return nil
		}
		line = strings.TrimSpace(line)
		if strings.ToLower(line) == "quit" {
			return nil
		}
		if err := handler.ProcessCommand(line); err != nil {
			fmt.Printf("Error: %v\n", err)
		}
	}
}
