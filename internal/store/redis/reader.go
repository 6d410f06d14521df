package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"equity-backtest/internal/model"
)

// ReaderConfig configures the Redis reader.
type ReaderConfig struct {
	Addr     string
	Password string
	DB       int
}

// Reader loads published reports and follows new ones.
type Reader struct {
	client *goredis.Client
}

// NewReader creates a new Redis Reader and pings the server.
func NewReader(cfg ReaderConfig) (*Reader, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Reader{client: client}, nil
}

// Client exposes the underlying client for health probes.
func (r *Reader) Client() *goredis.Client { return r.client }

// LatestReport returns the most recent report of strategy, or nil when none
// has been published.
func (r *Reader) LatestReport(ctx context.Context, strategy string) (*model.Report, error) {
	return r.get(ctx, LatestKey(strategy))
}

// RunReport returns the report of one run, or nil when it has expired.
func (r *Reader) RunReport(ctx context.Context, runID string) (*model.Report, error) {
	return r.get(ctx, RunKey(runID))
}

func (r *Reader) get(ctx context.Context, key string) (*model.Report, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis GET %s: %w", key, err)
	}
	return decodeReport(data)
}

// Subscribe delivers every report announced for strategy until ctx is
// cancelled. Undecodable messages are logged and dropped.
func (r *Reader) Subscribe(ctx context.Context, strategy string) (<-chan *model.Report, error) {
	sub := r.client.Subscribe(ctx, Channel(strategy))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", strategy, err)
	}

	out := make(chan *model.Report, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				rep, err := decodeReport([]byte(msg.Payload))
				if err != nil {
					slog.Warn("dropping report message", "channel", msg.Channel, "error", err)
					continue
				}
				select {
				case out <- rep:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func decodeReport(data []byte) (*model.Report, error) {
	var rep model.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	if rep.RunID == "" {
		return nil, errors.New("decode report: missing run_id")
	}
	return &rep, nil
}

// Close closes the Redis client.
func (r *Reader) Close() error {
	return r.client.Close()
}
