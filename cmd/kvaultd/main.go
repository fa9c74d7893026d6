// Command kvaultd is the kvault server: it accepts TCP connections, spawns
// one session.Handler.Serve goroutine per connection, and terminates
// cleanly on an authenticated BYE or on SIGINT/SIGTERM.
package main

import (
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/pflag"

	"github.com/dreamware/kvault/internal/kvcrypto"
	"github.com/dreamware/kvault/internal/mapreduce"
	"github.com/dreamware/kvault/internal/session"
	"github.com/dreamware/kvault/internal/store"
)

func main() {
	listenAddr := pflag.String("listen", ":9090", "address to listen on")
	dataFile := pflag.String("data-file", "kvault.db", "path to the persistence log/snapshot")
	keyFile := pflag.String("key-file", "kvault.key", "path to the server's RSA private key")
	buckets := pflag.Int("buckets", 16, "number of lock-striping buckets for users and keys")
	adminUser := pflag.String("admin-user", "admin", "username allowed to call register_mr")
	mruCapacity := pflag.Int("mru-capacity", 100, "number of most-recently-used keys tracked (one list shared by all users)")
	uploadQuota := pflag.Int64("up-quota", 10<<20, "per-window upload byte quota per user")
	downloadQuota := pflag.Int64("down-quota", 10<<20, "per-window download byte quota per user")
	requestQuota := pflag.Int64("req-quota", 1000, "per-window request count quota per user")
	quotaWindow := pflag.Duration("quota-window", time.Minute, "quota accounting window")
	mrPluginDir := pflag.String("mr-plugin-dir", "mr-plugins", "directory map/reduce plugins are staged in")
	mrChildPath := pflag.String("mr-child-path", "kvault-mr-child", "path to the kvault-mr-child helper binary")
	logLevel := pflag.String("log-level", "info", "zerolog level: debug, info, warn, error")
	pflag.Parse()

	level, err := zerolog.ParseLevel(*logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		Level(level).With().Timestamp().Logger()

	priv, err := kvcrypto.LoadPrivateKey(*keyFile)
	if err != nil {
		logger.Fatal().Err(err).Str("key_file", *keyFile).Msg("loading server private key")
	}

	mrTable, err := mapreduce.NewTable(*mrPluginDir, *mrChildPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("initializing map/reduce plugin table")
	}

	st, err := store.Open(*dataFile, store.Config{
		Buckets:     *buckets,
		AdminName:   *adminUser,
		MRUCapacity: *mruCapacity,
		UploadMax:   *uploadQuota,
		DownloadMax: *downloadQuota,
		RequestMax:  *requestQuota,
		Window:      *quotaWindow,
	}, mrTable, logger)
	if err != nil {
		logger.Fatal().Err(err).Str("data_file", *dataFile).Msg("opening store")
	}
	defer st.Close()

	ln, err := net.Listen("tcp", *listenAddr)
	if err != nil {
		logger.Fatal().Err(err).Str("addr", *listenAddr).Msg("listening")
	}
	logger.Info().Str("addr", *listenAddr).Msg("kvaultd listening")

	shutdown := make(chan struct{})
	var shutdownOnce sync.Once
	triggerShutdown := func() {
		shutdownOnce.Do(func() { close(shutdown) })
	}

	h := session.NewHandler(priv, st, logger, triggerShutdown)

	var wg sync.WaitGroup
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				h.Serve(conn)
			}()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sig:
		logger.Info().Msg("received shutdown signal")
	case <-shutdown:
		logger.Info().Msg("shutting down after authenticated BYE")
	}

	if err := ln.Close(); err != nil {
		logger.Warn().Err(err).Msg("closing listener")
	}
	wg.Wait()
	logger.Info().Msg("kvaultd stopped")
}
