package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/victornm/quizbattle/internal/client"
)

type credentialFlags struct {
	username string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.username, "username", "u", "", "username")
	cmd.Flags().StringVarP(&f.password, "password", "p", "", "password, read from stdin when empty")
}

// resolve prompts on in for whatever was not given as a flag.
func (f *credentialFlags) resolve(in io.Reader, out io.Writer) (string, string, error) {
	r := bufio.NewReader(in)

	read := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt)
		s, err := r.ReadString('\n')
		if err != nil && err != io.EOF {
			return "", err
		}
		return strings.TrimRight(s, "\r\n"), nil
	}

	u, p := f.username, f.password
	var err error
	if u == "" {
		if u, err = read("Username: "); err != nil {
			return "", "", err
		}
	}
	if p == "" {
		if p, err = read("Password: "); err != nil {
			return "", "", err
		}
	}

	return u, p, nil
}

func newRegisterCmd(o *rootOptions) *cobra.Command {
	f := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, _, err := o.client()
			if err != nil {
				return err
			}

			u, p, err := f.resolve(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			if err := c.Register(cmd.Context(), u, p); err != nil {
				return userError(err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Registration successful! Please log in.")
			return nil
		},
	}

	f.bind(cmd)
	return cmd
}

func newLoginCmd(o *rootOptions) *cobra.Command {
	f := &credentialFlags{}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and remember the user for later commands",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, cc, err := o.client()
			if err != nil {
				return err
			}

			u, p, err := f.resolve(cmd.InOrStdin(), cmd.OutOrStdout())
			if err != nil {
				return err
			}

			username, err := c.Login(cmd.Context(), u, p)
			if err != nil {
				return userError(err)
			}

			s := client.Session{Username: username, LoggedInAt: time.Now().UTC()}
			if err := s.Save(cc.Client.Session); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Welcome, %s!\n", username)
			return nil
		},
	}

	f.bind(cmd)
	return cmd
}

func newLogoutCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := o.clientConfig()
			if err != nil {
				return err
			}

			if err := client.ClearSession(cc.Client.Session); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Logged out.")
			return nil
		},
	}
}
