package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/ralph-pm/ralph/internal/config"
	"github.com/ralph-pm/ralph/internal/source"
	"github.com/ralph-pm/ralph/internal/util"
)

// credentialsCallback builds the process-wide credentials callback
// from the config file: interactive prompting by default, an external
// helper command when configured, or nothing at all.
func credentialsCallback(cfg config.File) source.CredentialsCallback {
	switch cfg.Credentials {
	case "off":
		return nil
	default:
		if cfg.CredentialsHelper != "" {
			return helperCredentials(cfg.CredentialsHelper)
		}
		return promptCredentials
	}
}

// promptCredentials asks for a username and password on the terminal,
// the only mechanism we can satisfy interactively.
func promptCredentials(query source.CredentialQuery) source.CredentialResponse {
	if query.AllowedTypes&source.CredentialUsernamePassword == 0 {
		return source.CredentialsInvalid()
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return source.CredentialsInvalid()
	}

	fmt.Printf("Username and password for %s required:\n", query.URL)
	fmt.Printf("Username [%s]: ", query.UsernameFromURL)
	username, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return source.CredentialsError()
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = query.UsernameFromURL
	}

	fmt.Print("Password []: ")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return source.CredentialsError()
	}

	return source.CredentialsForUsernamePassword(username, string(password))
}

// helperCredentials runs the configured helper command with the
// remote URL appended and reads "username\npassword" from its stdout,
// the way git credential helpers work.
func helperCredentials(cmdline string) source.CredentialsCallback {
	return func(query source.CredentialQuery) source.CredentialResponse {
		if query.AllowedTypes&source.CredentialUsernamePassword == 0 {
			return source.CredentialsInvalid()
		}

		argv, err := util.SplitCmd(cmdline)
		if err != nil || len(argv) == 0 {
			util.WarningMsg("invalid credentials_helper command: %s", cmdline)
			return source.CredentialsError()
		}
		output, err := util.GetCmdOutput(append(argv, query.URL))
		if err != nil {
			return source.CredentialsError()
		}

		lines := strings.SplitN(strings.TrimRight(string(output), "\n"), "\n", 2)
		if len(lines) != 2 {
			return source.CredentialsError()
		}
		return source.CredentialsForUsernamePassword(lines[0], lines[1])
	}
}
