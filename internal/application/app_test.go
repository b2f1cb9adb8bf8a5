package application

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/catalog-import/internal/config"
	"github.com/JonMunkholm/catalog-import/internal/core"
	"github.com/JonMunkholm/catalog-import/internal/database"
	"github.com/JonMunkholm/catalog-import/internal/graphclient"
)

func testConfig() *config.Config {
	return &config.Config{
		Database: config.DatabaseConfig{
			URL:             "postgres://localhost/catalog",
			MaxConns:        10,
			MinConns:        2,
			MaxConnLifetime: time.Hour,
			MaxConnIdleTime: 10 * time.Minute,
		},
		Import: config.ImportConfig{
			ChunkSize:               500,
			ValidationWorkers:       4,
			LookupConcurrency:       8,
			MaxConcurrentExecutions: 2,
			MaxWaitTime:             time.Minute,
			RetryAttempts:           3,
			RetryBackoff:            200 * time.Millisecond,
			ProgressInterval:        100,
		},
		Audit: config.AuditConfig{RetentionDays: 30, CheckInterval: time.Hour},
	}
}

func TestPoolConfig(t *testing.T) {
	want := database.PoolConfig{
		URL:             "postgres://localhost/catalog",
		MaxConns:        10,
		MinConns:        2,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 10 * time.Minute,
	}
	if diff := cmp.Diff(want, PoolConfig(testConfig())); diff != "" {
		t.Errorf("PoolConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestServiceOptions(t *testing.T) {
	audit := core.NewMemoryAuditLog()
	got := ServiceOptions(testConfig(), audit)

	if got.Audit != audit {
		t.Error("Audit not passed through")
	}
	got.Audit = nil
	want := core.ServiceOptions{
		ValidationWorkers:       4,
		LookupConcurrency:       8,
		ChunkSize:               500,
		MaxConcurrentExecutions: 2,
		MaxWaitTime:             time.Minute,
		Executor: core.ExecutorOptions{
			RetryAttempts:    3,
			RetryBackoff:     200 * time.Millisecond,
			ProgressInterval: 100,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ServiceOptions() mismatch (-want +got):\n%s", diff)
	}
}

func TestRetentionConfig(t *testing.T) {
	want := core.RetentionConfig{RetentionDays: 30, CheckInterval: time.Hour}
	if diff := cmp.Diff(want, RetentionConfig(testConfig())); diff != "" {
		t.Errorf("RetentionConfig() mismatch (-want +got):\n%s", diff)
	}
}

func TestNewElementRepository(t *testing.T) {
	tests := []struct {
		name    string
		repo    config.RepositoryConfig
		check   func(core.ElementRepository) bool
		wantErr bool
	}{
		{
			name:  "postgres",
			repo:  config.RepositoryConfig{Backend: "postgres"},
			check: func(r core.ElementRepository) bool { _, ok := r.(*database.ElementRepository); return ok },
		},
		{
			name:  "default",
			repo:  config.RepositoryConfig{},
			check: func(r core.ElementRepository) bool { _, ok := r.(*database.ElementRepository); return ok },
		},
		{
			name:  "http",
			repo:  config.RepositoryConfig{Backend: "http", URL: "https://graph.example.com", RetryMax: 1},
			check: func(r core.ElementRepository) bool { _, ok := r.(*graphclient.Client); return ok },
		},
		{
			name:    "http without url",
			repo:    config.RepositoryConfig{Backend: "http"},
			wantErr: true,
		},
		{
			name:    "unknown",
			repo:    config.RepositoryConfig{Backend: "mongo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Repository = tt.repo

			repo, err := NewElementRepository(cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(repo) {
				t.Errorf("got %T", repo)
			}
		})
	}
}
