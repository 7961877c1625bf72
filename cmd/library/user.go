package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/warp/library-engine/library"
	"golang.org/x/term"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var (
	newUserName     string
	newUserEmail    string
	newUserRole     string
	newUserGenerate bool
)

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an account",
	Long: `create adds an active account. The password is read from the terminal
without echo, or from the first line of stdin when it is not a terminal.
With --generate a random password is created and printed once.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		role, err := library.ParseRole(newUserRole)
		if err != nil {
			return err
		}

		var secret string
		if newUserGenerate {
			if secret, err = library.GeneratePassword(12); err != nil {
				return err
			}
		} else if secret, err = promptNewPassword(cmd.ErrOrStderr()); err != nil {
			return err
		}

		a, err := openApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		u, err := a.directory.CreateUser(cmd.Context(), library.NewUser{
			Name:     newUserName,
			Email:    newUserEmail,
			Password: secret,
			Role:     role,
		})
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Created user %d %s (%s)\n", u.ID, u.Email, u.Role.Label())
		if newUserGenerate {
			fmt.Fprintf(out, "Password: %s\n", secret)
		}
		return nil
	},
}

var listActiveOnly bool

var userListCmd = &cobra.Command{
	Use:   "list",
	Short: "List accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		users, err := a.directory.FilterUsers(cmd.Context(), library.UserFilter{ActiveOnly: listActiveOnly})
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tROLE\tACTIVE")
		for _, u := range users {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%t\n", u.ID, u.Name, u.Email, u.Role, u.Active)
		}
		return tw.Flush()
	},
}

var userResetCmd = &cobra.Command{
	Use:   "reset-password <email>",
	Short: "Replace a password with a generated one",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cfg, false)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx := cmd.Context()
		u, err := a.directory.FindByEmail(ctx, args[0])
		if err != nil {
			return err
		}
		secret, err := a.directory.ResetPassword(ctx, u.ID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "New password for %s: %s\n", u.Email, secret)
		return nil
	},
}

func init() {
	userCreateCmd.Flags().StringVar(&newUserName, "name", "", "full name")
	userCreateCmd.Flags().StringVar(&newUserEmail, "email", "", "login email")
	userCreateCmd.Flags().StringVar(&newUserRole, "role", string(library.RoleStudent), "STUDENT, FACULTY or ADMINISTRATOR")
	userCreateCmd.Flags().BoolVar(&newUserGenerate, "generate", false, "generate and print a random password")
	_ = userCreateCmd.MarkFlagRequired("name")
	_ = userCreateCmd.MarkFlagRequired("email")

	userListCmd.Flags().BoolVar(&listActiveOnly, "active", false, "only active accounts")

	userCmd.AddCommand(userCreateCmd, userListCmd, userResetCmd)
}

// promptNewPassword reads a password twice without echo. Piped input is
// read as a single line.
func promptNewPassword(prompt io.Writer) (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return "", fmt.Errorf("failed to read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}
