package lock

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"

	"NewsIngestor/internal/config"
	"NewsIngestor/internal/ports"
)

const releaseTimeout = 5 * time.Second

// compareAndDelete removes the key only when it still holds our token.
var compareAndDelete = valkey.NewLuaScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// ValkeyLock is an advisory lock shared by every process pointing at the same Valkey.
// The TTL bounds how long a crashed holder can block later runs.
type ValkeyLock struct {
	client valkey.Client
	key    string
	ttl    time.Duration
	logger *slog.Logger
}

var _ ports.RunLock = (*ValkeyLock)(nil)

// NewValkeyClient connects and pings a Valkey server.
func NewValkeyClient(ctx context.Context, cfg config.ValkeyConfig) (valkey.Client, error) {
	opts := valkey.ClientOption{
		InitAddress:      []string{cfg.Address},
		Password:         cfg.Password,
		ConnWriteTimeout: 5 * time.Second,
		SelectDB:         0,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	client, err := valkey.NewClient(opts)
	if err != nil {
		return nil, fmt.Errorf("create valkey client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping valkey: %w", err)
	}
	return client, nil
}

// NewValkeyLock wraps a connected client.
func NewValkeyLock(client valkey.Client, key string, ttl time.Duration, log *slog.Logger) *ValkeyLock {
	return &ValkeyLock{client: client, key: key, ttl: ttl, logger: log}
}

// TryAcquire issues SET key token NX PX ttl.
func (l *ValkeyLock) TryAcquire(ctx context.Context) (func(), bool, error) {
	token := uuid.NewString()
	cmd := l.client.B().Set().Key(l.key).Value(token).Nx().PxMilliseconds(l.ttl.Milliseconds()).Build()
	if err := l.client.Do(ctx, cmd).Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("acquire run lock: %w", err)
	}

	release := func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), releaseTimeout)
		defer cancel()
		if err := compareAndDelete.Exec(releaseCtx, l.client, []string{l.key}, []string{token}).Error(); err != nil {
			l.logger.Warn("release run lock failed", "key", l.key, "error", err)
		}
	}
	return release, true, nil
}
