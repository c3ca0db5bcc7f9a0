package main

import (
	"context"
	"fmt"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skotchmaster/pharmacy_portal/internal/auth"
	"github.com/Skotchmaster/pharmacy_portal/internal/config"
	"github.com/Skotchmaster/pharmacy_portal/internal/logging"
	"github.com/Skotchmaster/pharmacy_portal/internal/mykafka"
	"github.com/Skotchmaster/pharmacy_portal/internal/tokenstore"
)

func TestOpenStore(t *testing.T) {
	l := logging.New("error")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	tests := []struct {
		name   string
		cfg    config.Config
		sealed bool
		ready  bool
	}{
		{name: "memory", cfg: config.Config{StoreDriver: config.StoreMemory}},
		{
			name:   "memory sealed",
			cfg:    config.Config{StoreDriver: config.StoreMemory, StorageSecret: "0123456789abcdef0123456789abcdef"},
			sealed: true,
		},
		{
			name:  "sqlite",
			cfg:   config.Config{StoreDriver: config.StoreSQLite, SQLitePath: filepath.Join(t.TempDir(), "s.db")},
			ready: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st, err := openStore(ctx, &tt.cfg, l)
			require.NoError(t, err)
			t.Cleanup(func() { _ = st.close() })

			_, sealed := st.kv.(*tokenstore.SealedKV)
			assert.Equal(t, tt.sealed, sealed)
			if tt.ready {
				require.NotNil(t, st.ready)
				assert.NoError(t, st.ready(ctx))
			}

			require.NoError(t, st.kv.Set(ctx, "c", map[string]string{"k": "v"}, time.Minute))
			v, ok, err := st.kv.Get(ctx, "c", "k")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "v", v)
		})
	}
}

func TestOpenPublisherWithoutBrokers(t *testing.T) {
	p, err := openPublisher(&config.Config{}, logging.New("error"))
	require.NoError(t, err)
	assert.IsType(t, mykafka.Nop{}, p)
}

func TestServiceTokens(t *testing.T) {
	ctx := context.Background()
	tok := &serviceTokens{access: "a", refresh: "r"}
	require.NoError(t, tok.SetAccessToken(ctx, "a2"))
	a, _ := tok.AccessToken(ctx)
	assert.Equal(t, "a2", a)
	require.NoError(t, tok.Clear(ctx))
	r, _ := tok.RefreshToken(ctx)
	assert.Empty(t, r)
}

func TestPruneCacheDropsStaleMarks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := auth.NewValidationCache(time.Millisecond)
	for i := 0; i < 1000; i++ {
		c.Mark(fmt.Sprintf("sid-%d", i))
	}
	require.Equal(t, 1000, c.Len())

	go pruneCache(ctx, c, 5*time.Millisecond, logging.New("error"))
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestServeReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := &config.Config{
		ListenAddr:  ln.Addr().String(),
		LogLevel:    "error",
		APIURL:      "http://127.0.0.1:1",
		APIPrefix:   "/api",
		APITimeout:  time.Second,
		StoreDriver: config.StoreMemory,
	}
	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg) }()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorContains(t, err, "http server")
	case <-time.After(5 * time.Second):
		t.Fatal("serve did not return")
	}
}
