// Command qconvert-worker is the untrusted half of the trust boundary: it
// runs inside the disposable conversion VM, reads the client's file
// preamble from stdin, and writes the binary page-record reply stream to
// stdout. Nothing it writes to its own filesystem is expected to survive
// past process exit.
package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/neowutran/qconvert/internal/producer"
)

var (
	gVersion   = "0"
	gGitCommit = "0"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "--version" {
		fmt.Printf("qconvert-worker version %s commit %s\n", gVersion, gGitCommit)
		os.Exit(0)
	}

	p := producer.New(os.Stdout, promptForPassword)

	if err := p.Run(os.Stdin); err != nil {
		fmt.Fprintln(os.Stderr, "qconvert-worker:", err)
		os.Exit(1)
	}
}

// promptForPassword shells out to zenity for a GUI password modal,
// matching original_source/src/server.rs::get_password's worker-side
// prompt. The worker is the only half of this system that ever touches
// password UI; the client never prompts on its own.
func promptForPassword() (string, error) {
	cmd := exec.Command("zenity", "--title", "File protected by password", "--password")
	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("password prompt failed: %w", err)
	}
	password := string(out)
	for len(password) > 0 && (password[len(password)-1] == '\n' || password[len(password)-1] == '\r') {
		password = password[:len(password)-1]
	}
	return password, nil
}
