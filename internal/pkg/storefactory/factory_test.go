package storefactory

import (
	"context"
	"path/filepath"
	"testing"

	"chatlog/internal/config"
)

func TestNewStores(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		cfg     *config.Config
		wantErr bool
	}{
		{
			name:    "memory store",
			cfg:     &config.Config{Store: config.StoreConfig{Type: "memory"}},
			wantErr: false,
		},
		{
			name: "bolt store",
			cfg: &config.Config{Store: config.StoreConfig{
				Type:     "bolt",
				BoltPath: filepath.Join(tmpDir, "nested", "chatlog.db"),
			}},
			wantErr: false,
		},
		{
			name:    "unsupported store type",
			cfg:     &config.Config{Store: config.StoreConfig{Type: "invalid"}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			stores, err := NewStores(ctx, tt.cfg)

			if tt.wantErr {
				if err == nil {
					t.Errorf("NewStores() expected error, got nil")
				}
				if stores != nil {
					t.Errorf("NewStores() expected nil stores, got %v", stores)
				}
				return
			}

			if err != nil {
				t.Fatalf("NewStores() unexpected error: %v", err)
			}
			defer stores.Close(ctx)

			if stores.Conversations == nil || stores.Turns == nil {
				t.Fatalf("NewStores() returned incomplete stores")
			}
			if stores.Type != tt.cfg.Store.Type {
				t.Errorf("NewStores() Type = %v, want %v", stores.Type, tt.cfg.Store.Type)
			}
			if err := stores.Ping(ctx); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}
