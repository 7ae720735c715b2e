package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"marsfeed/pkg/auth"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage FTP credentials for uploads",
	Long: `Manage the credentials used to upload documents and animations.

Credentials are looked up in this order:
  - FTP_HOSTNAME, FTP_USERNAME and FTP_PASSWORD (or MARSFEED_FTP_*)
  - System keychain (when available)
  - Encrypted file in the user config directory`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login [host]",
	Short: "Store FTP credentials",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthLogin,
}

var authStatusCmd = &cobra.Command{
	Use:   "status [host]",
	Short: "Show which credentials would be used",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runAuthStatus,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout <host>",
	Short: "Remove stored credentials",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuthLogout,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLogoutCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("", true)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	reader := bufio.NewReader(os.Stdin)

	creds := &auth.Credentials{}
	if len(args) > 0 {
		creds.Host = args[0]
	} else if creds.Host, err = prompt(reader, "FTP host: "); err != nil {
		return err
	}
	if creds.Username, err = prompt(reader, "Username: "); err != nil {
		return err
	}
	fmt.Print("Password: ")
	if creds.Password, err = readPassword(reader); err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Println()

	if err := manager.Store(creds); err != nil {
		return err
	}
	newPrinter().Success("Credentials stored for " + creds.Host)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("", true)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	var host string
	if len(args) > 0 {
		host = args[0]
	}

	p := newPrinter()
	creds, err := manager.Retrieve(host)
	if errors.Is(err, auth.ErrCredentialsNotFound) {
		p.Warning("No credentials found. Run 'marsfeed auth login'.")
		return nil
	}
	if err != nil {
		return err
	}
	safe := creds.Sanitized()
	p.Info("Host", safe.Host)
	p.Info("Username", safe.Username)
	p.Info("Password", safe.Password)
	if !safe.LastModified.IsZero() {
		p.Info("Stored", safe.LastModified.Format("2006-01-02 15:04"))
	}
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	manager, err := auth.NewManager("", true)
	if err != nil {
		return fmt.Errorf("failed to initialize credential manager: %w", err)
	}
	if err := manager.Delete(args[0]); err != nil {
		return err
	}
	newPrinter().Success("Credentials removed for " + args[0])
	return nil
}

func prompt(reader *bufio.Reader, label string) (string, error) {
	fmt.Print(label)
	input, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	value := strings.TrimSpace(input)
	if value == "" {
		return "", fmt.Errorf("%s is required", strings.TrimSuffix(strings.TrimSpace(label), ":"))
	}
	return value, nil
}

// readPassword hides input on a terminal and falls back to a plain line
// when stdin is piped
func readPassword(reader *bufio.Reader) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := reader.ReadString('\n')
		return strings.TrimSpace(line), err
	}
	b, err := term.ReadPassword(fd)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
