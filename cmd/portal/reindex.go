package main

import (
	"context"
	"errors"
	"sync"

	"github.com/spf13/cobra"

	"github.com/Skotchmaster/pharmacy_portal/internal/apiclient"
	"github.com/Skotchmaster/pharmacy_portal/internal/config"
	"github.com/Skotchmaster/pharmacy_portal/internal/es"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/models"
	"github.com/Skotchmaster/pharmacy_portal/internal/resources"
	"github.com/Skotchmaster/pharmacy_portal/internal/service/search"
)

// serviceTokens holds the service account's tokens for the life of one command.
type serviceTokens struct {
	mu      sync.Mutex
	access  string
	refresh string
}

func (t *serviceTokens) AccessToken(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.access, nil
}

func (t *serviceTokens) RefreshToken(context.Context) (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.refresh, nil
}

func (t *serviceTokens) SetAccessToken(_ context.Context, tok string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access = tok
	return nil
}

func (t *serviceTokens) Clear(context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.access, t.refresh = "", ""
	return nil
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the medicine search index from the pharmacy API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return reindex(ctx, cfg)
		},
	}
}

func reindex(ctx context.Context, cfg *config.Config) error {
	if cfg.ServiceUser == "" || cfg.ServicePassword == "" {
		return errors.New("SERVICE_USERNAME and SERVICE_PASSWORD are required")
	}
	l := logging.Build(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})
	ctx = logging.IntoContext(ctx, l)

	esClient, err := es.NewClient(ctx, cfg, l)
	if err != nil {
		return err
	}

	client := apiclient.New(apiclient.Options{
		BaseURL: cfg.APIURL,
		Prefix:  cfg.APIPrefix,
		Timeout: cfg.APITimeout,
	})
	pair, err := client.IssueTokens(ctx, models.LoginCredentials{
		Username: cfg.ServiceUser,
		Password: cfg.ServicePassword,
	})
	if err != nil {
		return err
	}
	tokens := &serviceTokens{access: pair.Access, refresh: pair.Refresh}
	api := resources.New(client.Session(tokens, nil))

	n, err := search.New(esClient, cfg.ESIndex).Reindex(ctx, search.BackendSource(api.Medicines))
	if err != nil {
		return err
	}
	l.Info("reindex_done", "index", cfg.ESIndex, "indexed", n)
	return nil
}
