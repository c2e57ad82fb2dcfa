package store

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/MediSynth-io/authkit/internal/config"
	"github.com/MediSynth-io/authkit/internal/database"
)

// Open returns the store selected by cfg.Type together with a closer for the
// resources it holds.
func Open(ctx context.Context, cfg config.DatabaseConfig, log *zap.SugaredLogger) (UserStore, io.Closer, error) {
	if cfg.Type == "memory" {
		log.Infow("using in-memory user store; users are lost on restart")
		return NewMemoryStore(), nopCloser{}, nil
	}

	db, err := database.Open(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return NewSQLStore(db), db, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
