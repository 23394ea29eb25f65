package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/untoldecay/bdstore/contrib/kvfile"
	"github.com/untoldecay/bdstore/internal/storeconfig"
	"github.com/untoldecay/bdstore/plugin"
	"github.com/untoldecay/bdstore/store"
)

// openStore builds a Store with the persistence plugin wired to a
// kvfile-backed collection under --dir, named by --collection. The
// caller must call close when done.
func openStore(cmd *cobra.Command) (s *store.Store, closeFn func(), err error) {
	dir, _ := cmd.Flags().GetString("dir")
	collection, _ := cmd.Flags().GetString("collection")

	backend, err := kvfile.New(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("open collection dir: %w", err)
	}

	cfg, err := storeconfig.Load(storeconfig.Options{
		Persistence: plugin.PersistenceOptions{CollectionKey: collection},
	})
	if err != nil {
		return nil, nil, err
	}

	s = store.New()
	s.Use(plugin.Persistence(backend, cfg.Persistence))

	ctx := context.Background()
	if err := s.InitPlugins(ctx); err != nil {
		s.Close()
		return nil, nil, fmt.Errorf("init plugins: %w", err)
	}

	return s, func() {
		_ = s.DisposePlugins(ctx)
		s.Close()
	}, nil
}
