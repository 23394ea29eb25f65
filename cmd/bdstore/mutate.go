package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var putCmd = &cobra.Command{
	Use:   "put <key> <json>",
	Short: "Overwrite key with a JSON document",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, err := decodeJSONObject(args[1])
		if err != nil {
			return err
		}
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		s.Put(args[0], value)
		fmt.Printf("put %s\n", args[0])
		return nil
	},
}

var patchCmd = &cobra.Command{
	Use:   "patch <key> <json>",
	Short: "Merge a partial JSON document into key",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		partial, err := decodeJSONObject(args[1])
		if err != nil {
			return err
		}
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		s.Patch(args[0], partial)
		fmt.Printf("patched %s\n", args[0])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Tombstone key",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, closeFn, err := openStore(cmd)
		if err != nil {
			return err
		}
		defer closeFn()

		s.Delete(args[0])
		fmt.Printf("deleted %s\n", args[0])
		return nil
	},
}

func decodeJSONObject(raw string) (map[string]any, error) {
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, fmt.Errorf("invalid JSON object: %w", err)
	}
	return v, nil
}
