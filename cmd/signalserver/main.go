package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/diltdicker/redot-signalling-server/internal/config"
	"github.com/diltdicker/redot-signalling-server/internal/signaling"
	"github.com/diltdicker/redot-signalling-server/internal/transport"
	"github.com/diltdicker/redot-signalling-server/internal/wire"
)

func newLogger(production bool) *zap.SugaredLogger {
	if production {
		l, err := zap.NewProduction()
		if err != nil {
			panic(err)
		}
		return l.Sugar()
	}
	l, err := zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	return l.Sugar()
}

func main() {
	cfg := config.Load()
	log := newLogger(cfg.Production)
	defer log.Sync()

	reg := prometheus.NewRegistry()
	metrics := signaling.NewMetrics(reg)

	hub := signaling.NewHub(cfg.Signaling, signaling.RealClock(), log, metrics)
	defer hub.Shutdown()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", func(w http.ResponseWriter, r *http.Request) {
		ws, err := transport.Upgrade(w, r, log)
		if err != nil {
			log.Warnw("websocket upgrade failed", "err", err)
			return
		}
		peer, err := hub.Connect(ws)
		if err != nil {
			ws.Send(wire.EncodeErr(wire.ErrTooManyPeers))
			ws.Close(wire.CloseTooManyPeers, wire.ErrTooManyPeers.Reason)
			ws.Reject()
			return
		}
		ws.Serve(hub, peer.ID)
	})
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: cfg.Addr, Handler: mux}
	metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: metricsMux}

	go func() {
		log.Infow("signaling server listening", "addr", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("signaling server failed", "err", err)
		}
	}()
	go func() {
		log.Infow("metrics server listening", "addr", cfg.MetricsAddr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("metrics server failed", "err", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	<-sig

	log.Infow("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	server.Shutdown(ctx)
	metricsServer.Shutdown(ctx)
}
