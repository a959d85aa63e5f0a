// Package prompt reads passphrases and confirmations from the console.
package prompt

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	stdout io.Writer = os.Stdout

	// isTerminal and readPassword are replaced in tests.
	isTerminal   = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }
	readPassword = func() ([]byte, error) { return term.ReadPassword(int(os.Stdin.Fd())) }
)

// readSecret reads one line without echo when stdin is a terminal. Piped
// input is read from reader.
func readSecret(reader *bufio.Reader) ([]byte, error) {
	if isTerminal() {
		pass, err := readPassword()
		fmt.Fprint(stdout, "\n")
		return bytes.TrimSpace(pass), err
	}

	line, err := reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return nil, err
	}
	return []byte(strings.TrimSpace(line)), nil
}

// promptList prompts the user with the given prefix, list of valid responses,
// and default list entry to use. The prompt repeats until a valid response
// is given.
func promptList(reader *bufio.Reader, prefix string, validResponses []string,
	defaultEntry string) (string, error) {

	validStrings := strings.Join(validResponses, "/")
	var prompt string
	if defaultEntry != "" {
		prompt = fmt.Sprintf("%s (%s) [%s]: ", prefix, validStrings,
			defaultEntry)
	} else {
		prompt = fmt.Sprintf("%s (%s): ", prefix, validStrings)
	}

	for {
		fmt.Fprint(stdout, prompt)
		reply, err := reader.ReadString('\n')
		if err != nil {
			return "", err
		}
		reply = strings.TrimSpace(strings.ToLower(reply))
		if reply == "" {
			reply = defaultEntry
		}

		for _, validResponse := range validResponses {
			if reply == validResponse {
				return reply, nil
			}
		}
	}
}

// YesNo prompts for a yes or no answer.
func YesNo(reader *bufio.Reader, prefix string, defaultEntry string) (bool, error) {
	valid := []string{"n", "no", "y", "yes"}
	response, err := promptList(reader, prefix, valid, defaultEntry)
	if err != nil {
		return false, err
	}
	return response == "yes" || response == "y", nil
}

// Passphrase prompts for a non-empty passphrase. With confirm set, it is
// asked twice and the prompts repeat until both entries match.
func Passphrase(reader *bufio.Reader, prefix string, confirm bool) ([]byte, error) {
	prompt := fmt.Sprintf("%s: ", prefix)
	for {
		fmt.Fprint(stdout, prompt)
		pass, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		if len(pass) == 0 {
			continue
		}

		if !confirm {
			return pass, nil
		}

		fmt.Fprint(stdout, "Confirm passphrase: ")
		again, err := readSecret(reader)
		if err != nil {
			return nil, err
		}
		if !bytes.Equal(pass, again) {
			fmt.Fprintln(stdout, "The entered passphrases do not match")
			continue
		}

		return pass, nil
	}
}

// NewPassphrase prompts for the passphrase protecting a new profile.
func NewPassphrase(reader *bufio.Reader) ([]byte, error) {
	return Passphrase(reader, "Enter the passphrase for your new profile", true)
}

// ExistingPassphrase prompts for the passphrase of an existing profile.
func ExistingPassphrase(reader *bufio.Reader) ([]byte, error) {
	return Passphrase(reader, "Enter the passphrase of your profile", false)
}
