package util

import (
	"os"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

func quoteCmd(cmd []string) string {
	cleanedCmd := make([]string, len(cmd))
	copy(cleanedCmd, cmd)
	for i := range cmd {
		if strings.ContainsRune(cmd[i], '\n') {
			cleanedCmd[i] = "<secret sauce>"
		}
	}
	return shellquote.Join(cleanedCmd...)
}

// SplitCmd splits a configured command line into argv, shell-style.
func SplitCmd(cmdline string) ([]string, error) {
	return shellquote.Split(cmdline)
}

// GetCmdOutput runs the command and returns its stdout, echoing the
// quoted command line first.
func GetCmdOutput(cmd []string) ([]byte, error) {
	ProgressMsg(quoteCmd(cmd))
	command := exec.Command(cmd[0], cmd[1:]...)
	command.Stderr = os.Stderr
	return command.Output()
}
