package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/rvs/workflow-nodes/internal/credential"
	"github.com/rvs/workflow-nodes/internal/node"
	"github.com/rvs/workflow-nodes/internal/theme"
)

// credentialField describes one field of a credential type.
type credentialField struct {
	key      string
	title    string
	secret   bool
	optional bool
}

var credentialFields = map[string][]credentialField{
	"imap": {
		{key: "host", title: "Host"},
		{key: "port", title: "Port"},
		{key: "user", title: "User"},
		{key: "password", title: "Password", secret: true},
		{key: "secure", title: "Use TLS (true/false)", optional: true},
		{key: "allowUnauthorizedCerts", title: "Allow self-signed certificates (true/false)", optional: true},
	},
	"mySql": {
		{key: "host", title: "Host"},
		{key: "port", title: "Port", optional: true},
		{key: "database", title: "Database"},
		{key: "user", title: "User"},
		{key: "password", title: "Password", secret: true},
		{key: "connectTimeout", title: "Connect timeout (ms)", optional: true},
		{key: "ssl", title: "Use TLS (true/false)", optional: true},
	},
}

func newCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "credential",
		Short: "Manage credential sets stored in the system keyring",
	}
	cmd.AddCommand(newCredentialSetCmd(), newCredentialGetCmd(), newCredentialDeleteCmd(), newCredentialListCmd())
	return cmd
}

func newCredentialSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a credential set, prompting for missing fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			credType, _ := cmd.Flags().GetString("type")
			pairs, _ := cmd.Flags().GetStringToString("field")

			fields, ok := credentialFields[credType]
			if !ok {
				return fmt.Errorf("unknown credential type %q (want imap or mySql)", credType)
			}

			data := make(map[string]any, len(pairs))
			for k, v := range pairs {
				data[k] = v
			}

			if err := promptMissing(args[0], fields, data); err != nil {
				return err
			}

			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := ring.Set(args[0], data); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s stored credential %q\n",
				theme.StatusStyle("OK").Render("✓"), args[0])
			return nil
		},
	}
	cmd.Flags().StringP("type", "t", "imap", "credential type (imap or mySql)")
	cmd.Flags().StringToStringP("field", "f", nil, "field values as key=value")
	return cmd
}

// promptMissing asks for every required field not already in data.
func promptMissing(name string, fields []credentialField, data map[string]any) error {
	values := map[string]*string{}
	var inputs []huh.Field

	for _, f := range fields {
		if _, ok := data[f.key]; ok || f.optional {
			continue
		}
		v := new(string)
		values[f.key] = v

		input := huh.NewInput().
			Title(f.title).
			Value(v).
			Validate(validateRequired(f.title))
		if f.secret {
			input = input.EchoMode(huh.EchoModePassword)
		}
		inputs = append(inputs, input)
	}
	if len(inputs) == 0 {
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(inputs...).
			Title("Credential " + name).
			Description("Enter the missing fields"),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return fmt.Errorf("aborted")
		}
		return fmt.Errorf("prompting for credential fields: %w", err)
	}

	for k, v := range values {
		data[k] = strings.TrimSpace(*v)
	}
	return nil
}

func validateRequired(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func newCredentialGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <name>",
		Short: "Show a stored credential set with secrets masked",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := credential.Open()
			if err != nil {
				return err
			}
			data, err := ring.Get(args[0])
			if err != nil {
				return err
			}

			reveal, _ := cmd.Flags().GetBool("reveal")
			keys := make([]string, 0, len(data))
			for k := range data {
				keys = append(keys, k)
			}
			sort.Strings(keys)

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, theme.HeaderStyle.Render(args[0]))
			for _, k := range keys {
				value := fmt.Sprint(data[k])
				if !reveal && isSecret(k) {
					value = "********"
				}
				fmt.Fprintf(out, "%s %s\n", theme.LabelStyle.Render(k+":"), value)
			}
			return nil
		},
	}
	cmd.Flags().Bool("reveal", false, "print secret fields in clear text")
	return cmd
}

func isSecret(key string) bool {
	k := strings.ToLower(key)
	return strings.Contains(k, "password") || strings.Contains(k, "secret") || strings.Contains(k, "token")
}

func newCredentialDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Remove a stored credential set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := credential.Open()
			if err != nil {
				return err
			}
			if err := ring.Delete(args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted credential %q\n", args[0])
			return nil
		},
	}
}

func newCredentialListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored credential set names",
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := credential.Open()
			if err != nil {
				return err
			}
			names, err := ring.Names()
			if err != nil {
				return err
			}
			sort.Strings(names)
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

func newTestCredentialCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test-credential",
		Short: "Test the credentials of a node against its service",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			defer e.Close()

			nodeName, _ := cmd.Flags().GetString("node")
			res, err := e.runner.TestCredential(cmd.Context(), nodeName)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n",
				theme.StatusStyle(string(res.Status)).Render(string(res.Status)), res.Message)
			if res.Status != node.CredentialOK {
				return fmt.Errorf("credential test failed")
			}
			return nil
		},
	}
	cmd.Flags().StringP("node", "n", "", "name of the node whose credentials to test")
	_ = cmd.MarkFlagRequired("node")
	return cmd
}
