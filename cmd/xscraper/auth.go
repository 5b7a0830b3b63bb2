package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"xscraper/pkg/auth"
	"xscraper/pkg/ui"
)

// authCmd represents the auth command
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage source credentials",
	Long: `Manage stored source credentials securely.

Credentials are stored using:
  - System keychain (when available)
  - Encrypted file with PBKDF2 key derivation
  - Environment variables (read-only)

Never share your credentials or config files!`,
}

// loginCmd represents the auth login command
var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Store source credentials securely",
	Long: `Store source credentials securely in the system keychain or encrypted file.

You will be prompted for:
  - Account username (if not provided)
  - Auth token (from the auth_token cookie)
  - CSRF token (from the ct0 cookie)
  - Bearer token (optional, press Enter to skip)

To get these values:
1. Log into the site in your browser
2. Open Developer Tools (F12)
3. Go to Application/Storage > Cookies
4. Find and copy the auth_token and ct0 values`,
	Example: `  # Interactive login
  xscraper auth login

  # Login with username
  xscraper auth login myusername`,
	Args: cobra.MaximumNArgs(1),
	Run:  runLogin,
}

// listCmd represents the auth list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all stored accounts",
	Long:  `List all stored accounts with sanitized credential information.`,
	Run:   runList,
}

// removeCmd represents the auth remove command
var removeCmd = &cobra.Command{
	Use:   "remove <username>",
	Short: "Remove stored credentials",
	Long:  `Remove the stored credentials for an account.`,
	Example: `  xscraper auth remove myusername`,
	Args:    cobra.ExactArgs(1),
	Run:     runRemove,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(loginCmd)
	authCmd.AddCommand(listCmd)
	authCmd.AddCommand(removeCmd)
}

func runLogin(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	var username string
	if len(args) > 0 {
		username = args[0]
	}

	reader := bufio.NewReader(os.Stdin)

	if username == "" {
		fmt.Print("Account username: ")
		input, err := reader.ReadString('\n')
		if err != nil {
			ui.PrintError("Failed to read username", err.Error())
			os.Exit(1)
		}
		username = strings.TrimSpace(input)
	}

	if username == "" {
		ui.PrintError("Username is required", "")
		os.Exit(1)
	}

	// Check if account already exists
	if existing, _ := manager.Retrieve(username); existing != nil {
		fmt.Printf("Account '%s' already exists. Update credentials? (y/N): ", username)
		input, _ := reader.ReadString('\n')
		if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(input)), "y") {
			return
		}
	}

	fmt.Println("\nEnter your cookie values (they will be hidden as you type):")

	fmt.Print("\nauth_token cookie value: ")
	authToken, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read auth token", err.Error())
		os.Exit(1)
	}

	fmt.Print("\nct0 cookie value: ")
	csrfToken, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read CSRF token", err.Error())
		os.Exit(1)
	}

	fmt.Print("\nBearer token (optional, press Enter to skip): ")
	bearerToken, err := readPassword()
	if err != nil {
		ui.PrintError("Failed to read bearer token", err.Error())
		os.Exit(1)
	}

	fmt.Println()

	account := &auth.Account{
		Username:    username,
		AuthToken:   strings.TrimSpace(authToken),
		CSRFToken:   strings.TrimSpace(csrfToken),
		BearerToken: strings.TrimSpace(bearerToken),
	}

	if err := manager.Store(account); err != nil {
		ui.PrintError("Failed to store credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Credentials stored for '%s'", username))
}

func runList(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	accounts, err := manager.List()
	if err != nil {
		ui.PrintError("Failed to list accounts", err.Error())
		os.Exit(1)
	}

	if len(accounts) == 0 {
		ui.PrintWarning("No stored accounts")
		fmt.Println("\nStore credentials with:")
		fmt.Println("  xscraper auth login")
		return
	}

	fmt.Println("Stored accounts:")
	for _, account := range accounts {
		sanitized := auth.SanitizeAccount(account)
		fmt.Printf("  %s\n", ui.Cyan(sanitized.Username))
		fmt.Printf("    auth token: %s\n", ui.Dim(sanitized.AuthToken))
		fmt.Printf("    csrf token: %s\n", ui.Dim(sanitized.CSRFToken))
		if !account.LastModified.IsZero() {
			fmt.Printf("    modified:   %s\n", ui.Dim(account.LastModified.Format("2006-01-02 15:04")))
		}
	}
}

func runRemove(cmd *cobra.Command, args []string) {
	manager, err := auth.NewManager()
	if err != nil {
		ui.PrintError("Failed to initialize credential manager", err.Error())
		os.Exit(1)
	}

	username := args[0]
	if _, err := manager.Retrieve(username); err != nil {
		ui.PrintError("Account not found", username)
		os.Exit(1)
	}

	if err := manager.Delete(username); err != nil {
		ui.PrintError("Failed to remove credentials", err.Error())
		os.Exit(1)
	}

	ui.PrintSuccess(fmt.Sprintf("Removed credentials for '%s'", username))
}

// readPassword reads a line without echoing it
func readPassword() (string, error) {
	data, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return "", err
	}
	return string(data), nil
}
