// Package app wires configuration into the concrete clients, stores and
// services shared by the Lambda, the local server and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/redis/go-redis/v9"

	"mimic-assistant/handler"
	"mimic-assistant/internal/catalog"
	"mimic-assistant/internal/config"
	"mimic-assistant/internal/conversation"
	"mimic-assistant/internal/credential"
	"mimic-assistant/internal/dispatch"
	"mimic-assistant/internal/integrations/gemini"
	"mimic-assistant/internal/integrations/openai"
	"mimic-assistant/internal/integrations/paramstore"
	"mimic-assistant/internal/repository"
	"mimic-assistant/internal/repository/keyvalue"
	"mimic-assistant/internal/repository/memory"
	"mimic-assistant/internal/repository/sqlite"
	"mimic-assistant/internal/usecase"
)

// Completer is satisfied by both integration clients.
type Completer interface {
	dispatch.Completer
	catalog.Completer
}

type App struct {
	Conversations *conversation.Manager
	Catalog       *catalog.Service
	Chat          *usecase.ChatService
	CatalogUC     *usecase.CatalogService
	Handler       *handler.Handler

	closers []func() error
}

// New builds every service from cfg. Call Close when done to release the
// session store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("app: config must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	keys, err := Credentials(ctx, cfg.Completion)
	if err != nil {
		return nil, err
	}
	completer, err := NewCompleter(cfg.Completion, keys)
	if err != nil {
		return nil, err
	}
	store, closeStore, err := OpenStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	a, err := Assemble(cfg, keys, completer, store, logger)
	if err != nil {
		_ = closeStore()
		return nil, err
	}
	a.closers = append(a.closers, closeStore)
	return a, nil
}

// Assemble builds the services around an already constructed completer and
// store.
func Assemble(cfg *config.Config, keys credential.Source, completer Completer, store conversation.Store, logger *slog.Logger) (*App, error) {
	d, err := dispatch.New(completer, keys,
		dispatch.WithModel(cfg.Completion.ChatModel),
		dispatch.WithTimeout(cfg.Completion.DispatchTimeout),
		dispatch.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	manager, err := conversation.NewManager(d, store, conversation.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	cat, err := catalog.Default()
	if err != nil {
		return nil, err
	}
	catalogSvc, err := catalog.NewService(cat, completer,
		catalog.WithModel(cfg.Completion.CatalogModel),
		catalog.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	chatUC, err := usecase.NewChatService(manager, cfg.HTTP.MaxMessageLength)
	if err != nil {
		return nil, err
	}
	catalogUC, err := usecase.NewCatalogService(catalogSvc)
	if err != nil {
		return nil, err
	}
	h, err := handler.NewHandler(chatUC, catalogUC)
	if err != nil {
		return nil, err
	}

	return &App{
		Conversations: manager,
		Catalog:       catalogSvc,
		Chat:          chatUC,
		CatalogUC:     catalogUC,
		Handler:       h,
	}, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Credentials reads the API key from SSM when API_KEY_PARAM is configured,
// otherwise from GEMINI_API_KEY or API_KEY.
func Credentials(ctx context.Context, cfg config.Completion) (credential.Source, error) {
	if strings.TrimSpace(cfg.APIKeyParam) == "" {
		return credential.NewEnv("GEMINI_API_KEY", "API_KEY"), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("app: load AWS config: %w", err)
	}
	params, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return credential.NewParamStore(params, cfg.APIKeyParam)
}

func NewCompleter(cfg config.Completion, keys credential.Source) (Completer, error) {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		var opts []openai.Option
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		return openai.NewClient(keys, opts...)
	case config.ProviderGemini, "":
		var opts []gemini.Option
		if cfg.BaseURL != "" {
			opts = append(opts, gemini.WithBaseURL(cfg.BaseURL))
		}
		return gemini.NewClient(keys, opts...)
	}
	return nil, fmt.Errorf("app: unknown completion provider %q", cfg.Provider)
}

// OpenStore returns the configured session store and a func releasing it.
func OpenStore(ctx context.Context, cfg config.Store) (conversation.Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Backend {
	case config.StoreMemory, "":
		return memory.New(), noop, nil
	case config.StoreDynamoDB:
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("app: load AWS config: %w", err)
		}
		store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.Table)
		if err != nil {
			return nil, nil, err
		}
		return store, noop, nil
	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, nil, fmt.Errorf("app: ping redis %s: %w", cfg.RedisAddr, err)
		}
		store, err := keyvalue.NewChatStorage(rdb, cfg.SessionTTL)
		if err != nil {
			_ = rdb.Close()
			return nil, nil, err
		}
		return store, rdb.Close, nil
	case config.StoreSQLite:
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	}
	return nil, nil, fmt.Errorf("app: unknown store backend %q", cfg.Backend)
}
