package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/viper"

	"github.com/chatrelay/chatrelay/internal/config"
	"github.com/chatrelay/chatrelay/internal/relay/history"
)

func openStore(ctx context.Context) (*history.Store, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	db, err := history.Open(ctx, cfg.Store, nil)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return db, nil
}
