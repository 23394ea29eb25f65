// Command bdstore is a thin demo CLI exercising the store/query/plugin
// contracts against a single local collection: put/patch/delete mutate
// it, get/values print it, and query runs a live predicate view once and
// prints the result. Every command loads and saves the collection through
// the persistence plugin over a contrib/kvfile collection directory.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "bdstore",
	Short: "Demo CLI for the bdstore in-memory document store",
}

func init() {
	rootCmd.PersistentFlags().String("dir", ".bdstore", "collection directory (kvfile backend)")
	rootCmd.PersistentFlags().String("collection", "default", "collection key")
	rootCmd.AddCommand(putCmd, patchCmd, deleteCmd, getCmd, valuesCmd, queryCmd)
}
