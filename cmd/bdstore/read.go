package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/untoldecay/bdstore/query"
)

var getCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the decoded value at key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		v, ok := s.Get(args[0])
		if !ok {
			fmt.Println("null")
			return nil
		}
		return printJSON(v)
	},
}

var valuesCmd = &cobra.Command{
	Use:   "values",
	Short: "Print every non-tombstone value in the collection",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		return printJSON(s.Values())
	},
}

var queryCmd = &cobra.Command{
	Use:   "query <field> <equals>",
	Short: "Run a live equality predicate once and print the matching set",
	Long: `Runs a one-shot predicate query (field == equals) against the current
collection. The query engine is reactive (it would keep the result set
current as the store changes); this command just prints the initial
snapshot and exits.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		field, want := args[0], args[1]
		q := query.New(s, func(v map[string]any) bool {
			got, ok := v[field]
			if !ok {
				return false
			}
			return fmt.Sprintf("%v", got) == want
		})
		defer q.Dispose()

		// allow any in-flight dispatch from plugin init to settle before
		// reading a consistent snapshot.
		time.Sleep(10 * time.Millisecond)
		return printJSON(q.Results())
	},
}

func printJSON(v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(raw))
	return nil
}
