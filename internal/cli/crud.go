package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dmelo/painel/internal/database"
	"github.com/dmelo/painel/internal/facade"
)

// printJSON writes v to the command's stdout as indented JSON.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parseWhere turns repeated "column=value" flags into equality filters.
func parseWhere(clauses []string) ([]database.Filter, error) {
	b := database.NewFilter()
	for _, clause := range clauses {
		column, value, ok := strings.Cut(clause, "=")
		if !ok || column == "" {
			return nil, database.Errorf(database.KindValidation, "invalid --where clause %q (expected column=value)", clause)
		}
		b.Eq(column, value)
	}
	return b.Build(), nil
}

// parseOrder turns repeated "column" or "column:desc" flags into sort
// directives.
func parseOrder(clauses []string) ([]database.OrderBy, error) {
	var order []database.OrderBy
	for _, clause := range clauses {
		column, dir, hasDir := strings.Cut(clause, ":")
		if column == "" {
			return nil, database.Errorf(database.KindValidation, "invalid --order clause %q", clause)
		}
		ascending := true
		if hasDir {
			switch strings.ToLower(dir) {
			case "asc":
			case "desc":
				ascending = false
			default:
				return nil, database.Errorf(database.KindValidation, "invalid --order direction %q (expected asc or desc)", dir)
			}
		}
		order = append(order, database.OrderBy{Column: column, Ascending: ascending})
	}
	return order, nil
}

func newListCmd(a *app) *cobra.Command {
	var (
		where []string
		order []string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "list <collection>",
		Short: "List records of a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := a.collection(args[0])
			if err != nil {
				return err
			}
			filters, err := parseWhere(where)
			if err != nil {
				return err
			}
			orderBy, err := parseOrder(order)
			if err != nil {
				return err
			}
			records, err := coll.FindAll(cmd.Context(), a.principal, facade.QueryOptions{
				Filters: filters,
				OrderBy: orderBy,
				Limit:   limit,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd, records)
		},
	}
	cmd.Flags().StringArrayVar(&where, "where", nil, "equality filter, column=value (repeatable)")
	cmd.Flags().StringArrayVar(&order, "order", nil, "sort directive, column or column:desc (repeatable)")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of records (0 = all)")
	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <collection> <id>",
		Short: "Show one record by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := a.collection(args[0])
			if err != nil {
				return err
			}
			record, err := coll.FindByID(cmd.Context(), a.principal, args[1])
			if err != nil {
				return err
			}
			if record == nil {
				return database.Errorf(database.KindNotFound, "no record %q in %s", args[1], args[0])
			}
			return printJSON(cmd, record)
		},
	}
}

func newAddCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "add <collection>",
		Short: "Create a record from a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := a.collection(args[0])
			if err != nil {
				return err
			}
			record, err := decodeData(data)
			if err != nil {
				return err
			}
			created, err := coll.Create(cmd.Context(), a.principal, record)
			if err != nil {
				return err
			}
			return printJSON(cmd, created)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "record as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newSetCmd(a *app) *cobra.Command {
	var data string
	cmd := &cobra.Command{
		Use:   "set <collection> <id>",
		Short: "Update columns of a record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := a.collection(args[0])
			if err != nil {
				return err
			}
			changes, err := decodeData(data)
			if err != nil {
				return err
			}
			updated, err := coll.UpdateByID(cmd.Context(), a.principal, args[1], changes)
			if err != nil {
				return err
			}
			return printJSON(cmd, updated)
		},
	}
	cmd.Flags().StringVar(&data, "data", "", "changed columns as a JSON object (required)")
	_ = cmd.MarkFlagRequired("data")
	return cmd
}

func newRmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rm <collection> <id>",
		Short: "Delete a record by id",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			coll, err := a.collection(args[0])
			if err != nil {
				return err
			}
			removed, err := coll.DeleteByID(cmd.Context(), a.principal, args[1])
			if err != nil {
				return err
			}
			if !removed {
				return database.Errorf(database.KindNotFound, "no record %q in %s", args[1], args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[1])
			return nil
		},
	}
}

// decodeData parses the --data flag into a record.
func decodeData(data string) (database.Record, error) {
	var record database.Record
	if err := json.Unmarshal([]byte(data), &record); err != nil {
		return nil, database.WrapError(database.KindValidation, "--data must be a JSON object", err)
	}
	return record, nil
}
