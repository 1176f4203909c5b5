package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"particleswarm.ai/internal/analysis"
	"particleswarm.ai/internal/metrics"
	"particleswarm.ai/internal/persistence/indexdb"
	"particleswarm.ai/internal/sim/tuning"
	"particleswarm.ai/internal/transport/ws"
)

func main() {
	var (
		addr       = flag.String("addr", "", "http listen address (default from tuning)")
		tuningPath = flag.String("tuning", "", "path to tuning.yaml (optional)")
		dbPath     = flag.String("db", "", "sqlite run index path (default from tuning)")
		eventsDir  = flag.String("events", "", "directory for collision logs (default from tuning)")
		disableDB  = flag.Bool("disable_db", false, "disable the run index")
	)
	flag.Parse()

	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lmicroseconds)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		logger.Fatalf("load tuning: %v", err)
	}
	if *addr != "" {
		tune.Server.Addr = *addr
	}
	if *dbPath != "" {
		tune.Persistence.IndexDB = *dbPath
	}
	if *eventsDir != "" {
		tune.Persistence.EventsDir = *eventsDir
	}
	if tune.Persistence.EventsDir != "" {
		_ = os.MkdirAll(tune.Persistence.EventsDir, 0o755)
	}

	var idx *indexdb.SQLiteIndex
	if !*disableDB && tune.Persistence.IndexDB != "" {
		idx, err = indexdb.OpenSQLite(tune.Persistence.IndexDB)
		if err != nil {
			logger.Printf("index disabled: %v", err)
			idx = nil
		} else {
			defer idx.Close()
			if digest, err := idx.UpsertTuning(tune); err != nil {
				logger.Printf("index: upsert tuning: %v", err)
			} else {
				logger.Printf("tuning %s", digest[:12])
			}
		}
	}

	runner := &analysis.Runner{
		Log:       logger,
		Index:     idx,
		Metrics:   metrics.NewCollector(),
		EventsDir: tune.Persistence.EventsDir,
	}

	ctx, cancel := signalContext()
	defer cancel()

	srv := &http.Server{
		Addr:              tune.Server.Addr,
		Handler:           newMux(runner, idx, tune, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel2()
		_ = srv.Shutdown(ctx2)
	}()

	logger.Printf("listening on %s", tune.Server.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Printf("ListenAndServe: %v", err)
	}
}

func newMux(runner *analysis.Runner, idx *indexdb.SQLiteIndex, tune tuning.Tuning, logger *log.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, r *http.Request) {
		rw.WriteHeader(200)
		_, _ = rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", runner.Metrics.Handler())

	if envBool("SWARM_ENABLE_ADMIN_HTTP", defaultEnableAdminHTTP()) {
		// Local-only.
		mux.HandleFunc("/admin/v1/index", func(rw http.ResponseWriter, r *http.Request) {
			if !isLoopbackRemote(r.RemoteAddr) {
				http.Error(rw, "forbidden", http.StatusForbidden)
				return
			}
			rw.Header().Set("Content-Type", "application/json")
			resp := struct {
				Enabled bool          `json:"enabled"`
				Stats   indexdb.Stats `json:"stats"`
			}{
				Enabled: idx != nil,
				Stats:   idx.Stats(),
			}
			_ = json.NewEncoder(rw).Encode(resp)
		})
	} else {
		logger.Printf("admin endpoints disabled (SWARM_ENABLE_ADMIN_HTTP=false)")
	}
	if envBool("SWARM_ENABLE_PPROF_HTTP", false) {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}
	mux.HandleFunc("/v1/ws", ws.NewServer(runner, tune, logger).Handler())
	return mux
}

func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-ch
		cancel()
	}()
	return ctx, cancel
}

func isLoopbackRemote(remoteAddr string) bool {
	host := remoteAddr
	if h, _, err := net.SplitHostPort(remoteAddr); err == nil {
		host = h
	}
	host = strings.TrimPrefix(host, "[")
	host = strings.TrimSuffix(host, "]")
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func defaultEnableAdminHTTP() bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv("DEPLOY_ENV"))) {
	case "staging", "production":
		return false
	default:
		return true
	}
}

func envBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
