package main

import (
	"fmt"

	"github.com/vogtb/go-spreadsheet/internal/config"
	"github.com/vogtb/go-spreadsheet/packages/store"
)

// openStore builds the configured workbook store
func openStore(cfg config.StoreConfig) (store.Store, error) {
	switch cfg.Kind {
	case config.StoreBolt:
		return store.OpenBolt(cfg.Path)
	case config.StoreRedis:
		opts := []store.RedisOption{store.WithTTL(cfg.TTL)}
		if cfg.Prefix != "" {
			opts = append(opts, store.WithPrefix(cfg.Prefix))
		}
		return store.NewRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, opts...), nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
