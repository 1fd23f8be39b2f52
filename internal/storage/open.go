package storage

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"
)

// Backend names one of the interchangeable AccountStore implementations.
type Backend string

const (
	BackendFile     Backend = "file"
	BackendSupabase Backend = "supabase"
	BackendPostgres Backend = "postgres"
	BackendMongo    Backend = "mongo"
)

// Options carries everything Open needs to pick and connect a backend.
type Options struct {
	DataDir     string
	SupabaseURL string
	SupabaseKey string
	Table       string
	DatabaseURL string
	MongoURI    string
	MongoDB     string
}

// Backend applies the selection rule: Supabase when both its URL and service
// key are set, then Postgres, then Mongo, and the JSON file otherwise.
func (o Options) Backend() Backend {
	switch {
	case o.SupabaseURL != "" && o.SupabaseKey != "":
		return BackendSupabase
	case o.DatabaseURL != "":
		return BackendPostgres
	case o.MongoURI != "":
		return BackendMongo
	default:
		return BackendFile
	}
}

// Open connects the backend chosen by opts.Backend.
func Open(ctx context.Context, opts Options) (AccountStore, error) {
	backend := opts.Backend()
	logger := log.WithField("backend", backend)

	switch backend {
	case BackendSupabase:
		logger.WithField("table", opts.tableName()).Info("using hosted table store")
		return NewSupabaseStore(opts.SupabaseURL, opts.SupabaseKey, opts.Table), nil
	case BackendPostgres:
		s, err := NewPostgresStore(ctx, opts.DatabaseURL, opts.Table)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		logger.WithField("table", opts.tableName()).Info("using postgres store")
		return s, nil
	case BackendMongo:
		s, err := NewMongoStore(ctx, opts.MongoURI, opts.MongoDB)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		logger.Info("using mongo store")
		return s, nil
	default:
		s, err := NewFileStore(opts.DataDir)
		if err != nil {
			return nil, err
		}
		logger.WithField("path", s.json.Path()).Info("using file store")
		return s, nil
	}
}

func (o Options) tableName() string {
	if o.Table == "" {
		return DefaultSupabaseTable
	}
	return o.Table
}
