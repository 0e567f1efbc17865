package commands

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/johnwbyrd/semihost/internal/cli/output"
	"github.com/johnwbyrd/semihost/pkg/api/auth"
	"github.com/johnwbyrd/semihost/pkg/config"
	"github.com/johnwbyrd/semihost/pkg/policystore"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and manage path policy sets",
}

var policyShowCmd = &cobra.Command{
	Use:   "show <policy-set>",
	Short: "List the path rules in a policy set",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyShow,
}

var (
	policyAllowWrite bool
)

var policySetRuleCmd = &cobra.Command{
	Use:   "set <policy-set> <prefix>",
	Short: "Add a path rule to a policy set",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicySet,
}

var policyTokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an admin bearer token for the admin API",
	Long: `Mint a bearer token signed with the configured auth secret, for use
against the admin API's write endpoints (PUT /policy).

There is no login flow: the operator holding the config file's auth
secret is implicitly trusted to mint tokens for themselves.`,
	RunE: runPolicyToken,
}

func init() {
	policySetRuleCmd.Flags().BoolVar(&policyAllowWrite, "allow-write", false, "Allow writes under this prefix")

	policyCmd.AddCommand(policyShowCmd)
	policyCmd.AddCommand(policySetRuleCmd)
	policyCmd.AddCommand(policyTokenCmd)
}

func openPolicyStore() (*policystore.Store, *config.Config, error) {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return nil, nil, err
	}
	store, err := policystore.New(&cfg.Policy)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open policy store: %w", err)
	}
	return store, cfg, nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	store, _, err := openPolicyStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	set, err := store.GetPolicySet(ctx, args[0])
	if err != nil {
		return fmt.Errorf("policy set %q: %w", args[0], err)
	}
	rules, err := store.ListRules(ctx, set.ID)
	if err != nil {
		return err
	}

	table := output.NewTableData("PREFIX", "ALLOW WRITE")
	for _, rule := range rules {
		table.AddRow(rule.Prefix, strconv.FormatBool(rule.AllowWrite))
	}
	return output.PrintTable(cmd.OutOrStdout(), table)
}

func runPolicySet(cmd *cobra.Command, args []string) error {
	store, _, err := openPolicyStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := context.Background()
	setName, prefix := args[0], args[1]
	set, err := store.GetPolicySet(ctx, setName)
	if errors.Is(err, policystore.ErrPolicySetNotFound) {
		set, err = store.CreatePolicySet(ctx, setName)
	}
	if err != nil {
		return fmt.Errorf("policy set %q: %w", setName, err)
	}

	if err := store.AddRule(ctx, set.ID, prefix, policyAllowWrite); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Added rule: %s (allow_write=%v) to policy set %q\n", prefix, policyAllowWrite, setName)
	return nil
}

func runPolicyToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	svc, err := auth.NewService(auth.Config{
		Secret:        cfg.Auth.Secret,
		Issuer:        cfg.Auth.Issuer,
		TokenDuration: cfg.Auth.TokenDuration,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize auth service: %w", err)
	}

	token, expiresAt, err := svc.IssueToken(auth.RoleAdmin)
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), token)
	fmt.Fprintf(cmd.ErrOrStderr(), "expires: %s\n", expiresAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
