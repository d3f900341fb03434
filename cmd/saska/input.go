package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// readPassword is a test seam for term.ReadPassword.
var readPassword = term.ReadPassword

// isTerminal reports whether stdin is an interactive terminal.
var isTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

// prompt prints text and reads one trimmed line. EOF after partial input
// returns the partial line.
func prompt(r *bufio.Reader, w io.Writer, text string) (string, error) {
	if _, err := fmt.Fprint(w, text+"\n> "); err != nil {
		return "", err
	}
	line, err := r.ReadString('\n')
	if err != nil {
		if errors.Is(err, io.EOF) && len(line) > 0 {
			return strings.TrimSpace(line), nil
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// promptPassword reads without echo on a terminal and falls back to a plain
// line read when input is piped.
func promptPassword(r *bufio.Reader, w io.Writer, text string) (string, error) {
	if !isTerminal() {
		return prompt(r, w, text)
	}
	if _, err := fmt.Fprint(w, text+": "); err != nil {
		return "", err
	}
	pw, err := readPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return "", err
	}
	return string(pw), nil
}

func confirm(r *bufio.Reader, w io.Writer, text string) (bool, error) {
	ans, err := prompt(r, w, text+" (y/n)")
	if err != nil {
		return false, err
	}
	switch strings.ToLower(ans) {
	case "y", "yes", "بله":
		return true, nil
	}
	return false, nil
}

// pickOption resolves a 1-based option number to its text. Anything else is
// returned unchanged so free-text answers still work.
func pickOption(options []string, input string) string {
	if n, err := strconv.Atoi(input); err == nil && n >= 1 && n <= len(options) {
		return options[n-1]
	}
	return input
}

func printOptions(w io.Writer, options []string) {
	for i, o := range options {
		fmt.Fprintf(w, "  %d) %s\n", i+1, o)
	}
}
