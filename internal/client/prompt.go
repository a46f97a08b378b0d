package client

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// PromptSecret writes a prompt to w and reads one line from r. Trailing
// newline characters are removed; an empty answer is ErrEmptySecret.
func PromptSecret(r io.Reader, w io.Writer) (string, error) {
	fmt.Fprint(w, "Enter secret: ")

	scanner := bufio.NewScanner(r)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("read secret: %w", err)
		}
		return "", ErrEmptySecret
	}
	secret := strings.TrimRight(scanner.Text(), "\r\n")
	if secret == "" {
		return "", ErrEmptySecret
	}
	return secret, nil
}
