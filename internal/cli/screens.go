package cli

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/interpretive-systems/erpview/internal/registry"
)

type screenInfo struct {
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Views       []string `json:"views"`
	BulkActions []string `json:"bulk_actions,omitempty"`
}

func newScreensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "screens",
		Short: "List the available screens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			asJSON, err := cmd.Flags().GetBool("json")
			if err != nil {
				return err
			}
			infos, err := listScreens()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(infos)
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tTITLE\tVIEWS\tBULK ACTIONS")
			for _, s := range infos {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", s.Name, s.Title,
					strings.Join(s.Views, ", "), strings.Join(s.BulkActions, ", "))
			}
			return w.Flush()
		},
	}
	cmd.Flags().Bool("json", false, "Print as JSON")
	return cmd
}

// listScreens describes every shipped screen. Screens are built, never
// mounted, to ask for their bulk actions.
func listScreens() ([]screenInfo, error) {
	reg := registry.New(registry.Env{})
	if err := registerScreens(reg); err != nil {
		return nil, err
	}
	defer reg.Close()

	var out []screenInfo
	for _, name := range reg.Names() {
		info, err := reg.Info(name)
		if err != nil {
			return nil, err
		}
		s := screenInfo{Name: info.Name, Title: info.Title, Views: info.Views}
		scr, err := reg.Create(name, nil)
		if err != nil {
			return nil, err
		}
		if bs, ok := scr.(registry.BulkScreen); ok {
			s.BulkActions = bs.BulkActions()
		}
		reg.Release(scr)
		out = append(out, s)
	}
	return out, nil
}
