package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/interpretive-systems/erpview/internal/notify"
	"github.com/interpretive-systems/erpview/internal/registry"
	"github.com/interpretive-systems/erpview/internal/table"
)

func newBulkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bulk <screen> <action> <id>...",
		Short: "Run a bulk action without opening the terminal UI",
		Long: "Run a screen's bulk action against the listed record ids. Items run one at a\n" +
			"time; the command fails when any item fails.",
		Args: cobra.MinimumNArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			yes, err := cmd.Flags().GetBool("yes")
			if err != nil {
				return err
			}
			var confirm notify.Confirmer = notify.Form{Affirmative: "Run", Negative: "Cancel"}
			if yes {
				confirm = notify.Always(true)
			}
			return runBulk(cmd, args[0], args[1], args[2:], confirm)
		},
	}
	cmd.Flags().BoolP("yes", "y", false, "Do not ask for confirmation")
	return cmd
}

func runBulk(cmd *cobra.Command, screen, action string, ids []string, confirm notify.Confirmer) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cfg, os.Stderr)
	reg := registry.New(registry.Env{API: newClient(cfg, logger), Config: cfg})
	if err := registerScreens(reg); err != nil {
		return err
	}
	defer reg.Close()

	scr, err := reg.Create(screen, nil)
	if err != nil {
		return err
	}
	bs, ok := scr.(registry.BulkScreen)
	if !ok {
		return fmt.Errorf("%s has no bulk actions", screen)
	}
	fn, err := bs.BulkItem(action)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, strings.Join(bs.BulkActions(), ", "))
	}

	ctx := cmd.Context()
	ok, err = confirm.Confirm(ctx, notify.Prompt{
		Title:   fmt.Sprintf("%s %d %s record(s)?", action, len(ids), scr.Title()),
		Message: strings.Join(ids, ", "),
		Kind:    notify.Warning,
	})
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !ok {
		fmt.Fprintln(out, "cancelled")
		return nil
	}

	res := table.Runner{Logger: logger}.Run(ctx, action, ids, fn)
	fmt.Fprintln(out, res.Summary())
	for _, id := range res.Failed {
		fmt.Fprintf(out, "  %s: %v\n", id, res.Errors[id])
	}
	return res.Err()
}
