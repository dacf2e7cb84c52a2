package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/faucetdb/tollgate/internal/auth"
	"github.com/faucetdb/tollgate/internal/model"
)

func (a *app) newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage access keys",
		Long:  "Generate, list, revoke and verify expiring access keys directly against the key store.",
	}

	cmd.AddCommand(a.newKeyGenerateCmd())
	cmd.AddCommand(a.newKeyListCmd())
	cmd.AddCommand(a.newKeyRevokeCmd())
	cmd.AddCommand(a.newKeyVerifyCmd())

	return cmd
}

// stdoutIsTerminal reports whether output goes to an interactive terminal.
// Scripts get bare values without decoration.
var stdoutIsTerminal = func() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func cliLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ---------- key generate ----------

func (a *app) newKeyGenerateCmd() *cobra.Command {
	var lifetime time.Duration

	cmd := &cobra.Command{
		Use:     "generate",
		Aliases: []string{"create"},
		Short:   "Generate a new access key",
		Example: `  tollgate key generate --lifetime 2h
  KEY=$(tollgate key generate --lifetime 30s)`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeyGenerate(cmd, lifetime)
		},
	}

	cmd.Flags().DurationVar(&lifetime, "lifetime", 0, "How long the key stays valid (default: auth.default_key_lifetime)")

	return cmd
}

func (a *app) runKeyGenerate(cmd *cobra.Command, lifetime time.Duration) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if !cmd.Flags().Changed("lifetime") {
		lifetime = cfg.Auth.DefaultKeyLifetime
	}

	keys, st, err := openKeyService(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	k, err := keys.GenerateKey(cmdCtx(), lifetime)
	if err != nil {
		return fmt.Errorf("generate key: %w", err)
	}

	out := cmd.OutOrStdout()
	if !stdoutIsTerminal() {
		fmt.Fprintln(out, k.Key.String())
		return nil
	}

	fmt.Fprintln(out, "Access key generated:")
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  Key:         %s\n", k.Key)
	fmt.Fprintf(out, "  Valid until: %s\n", k.ValidUntil)
	return nil
}

// ---------- key list ----------

func (a *app) newKeyListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all stored access keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeyList(cmd, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output as JSON")

	return cmd
}

func (a *app) runKeyList(cmd *cobra.Command, jsonOutput bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	keys, st, err := openKeyService(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	list := keys.ListKeys()
	out := cmd.OutOrStdout()

	if jsonOutput {
		rows := model.NewKeyList(list).Resource
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No access keys stored. Use 'tollgate key generate' to create one.")
		return nil
	}

	fmt.Fprintf(out, "%-32s  %-30s  %-8s\n", "KEY", "VALID UNTIL", "STATUS")
	fmt.Fprintf(out, "%-32s  %-30s  %-8s\n", "---", "-----------", "------")
	for _, k := range list {
		status := "active"
		if auth.Verify(k) != nil {
			status = "expired"
		}
		fmt.Fprintf(out, "%-32s  %-30s  %-8s\n", k.Key, k.ValidUntil, status)
	}
	return nil
}

// ---------- key revoke ----------

func (a *app) newKeyRevokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "revoke <key>",
		Aliases: []string{"rm"},
		Short:   "Delete an access key",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeyRevoke(cmd, args[0])
		},
	}
}

func (a *app) runKeyRevoke(cmd *cobra.Command, raw string) error {
	key, err := auth.ParseKey(raw)
	if err != nil {
		return err
	}

	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	keys, st, err := openKeyService(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	if err := keys.RemoveKey(cmdCtx(), key); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Key %s revoked.\n", key)
	return nil
}

// ---------- key verify ----------

func (a *app) newKeyVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <key>",
		Short: "Check whether an access key is known and unexpired",
		Long:  "Exits non-zero when the key is malformed, unknown or expired.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runKeyVerify(cmd, args[0])
		},
	}
}

func (a *app) runKeyVerify(cmd *cobra.Command, raw string) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	keys, st, err := openKeyService(cfg, cliLogger())
	if err != nil {
		return err
	}
	defer st.Close()

	k, err := keys.VerifyKey(cmdCtx(), raw)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "valid: %s (expires in %s)\n", k, k.ExpiresIn().Round(time.Second))
	return nil
}
