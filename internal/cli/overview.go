package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newOverviewCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "overview",
		Short: "Aggregate view over all four dashboard areas",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			summary, err := a.cols.Overview(cmd.Context(), a.principal)
			if err != nil {
				return err
			}
			if asJSON {
				return printJSON(cmd, map[string]any{
					"concursos":            summary.Concursos,
					"atividades":           summary.Atividades,
					"atividades_pendentes": summary.Pendentes,
					"saldo":                summary.Saldo,
					"refeicoes":            summary.Refeicoes,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "concursos:   %d\n", summary.Concursos)
			fmt.Fprintf(out, "atividades:  %d (%d pendentes)\n", summary.Atividades, summary.Pendentes)
			fmt.Fprintf(out, "saldo:       %.2f\n", summary.Saldo)
			fmt.Fprintf(out, "refeicoes:   %d\n", summary.Refeicoes)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit the summary as JSON")
	return cmd
}
