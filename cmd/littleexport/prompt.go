package main

import (
	"bufio"
	"fmt"
	"os"

	"golang.org/x/term"
)

// promptPassword reads a password without echo. Falls back to plain
// line input when stdin is not a terminal (piped invocations).
func promptPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		scanner := bufio.NewScanner(os.Stdin)
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return "", fmt.Errorf("reading password: %w", err)
			}
			return "", fmt.Errorf("no password on stdin")
		}
		return scanner.Text(), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(pw), nil
}

// promptNewPassword prompts twice and requires both entries to match.
func promptNewPassword() (string, error) {
	first, err := promptPassword()
	if err != nil {
		return "", err
	}
	if first == "" {
		return "", fmt.Errorf("empty password")
	}
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		fmt.Fprint(os.Stderr, "Again: ")
		second, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		if string(second) != first {
			return "", fmt.Errorf("passwords do not match")
		}
	}
	return first, nil
}
