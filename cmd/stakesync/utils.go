// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/beevik/ntp"
	gethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/config"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/metrics"
)

// maxClockOffset bounds the drift tolerated before warning, transaction
// validity windows are computed from the local clock.
const maxClockOffset = 10 * time.Second

func initLogger(ctx *cli.Context) *slog.LevelVar {
	return log.Init(int(ctx.Uint64(verbosityFlag.Name)), ctx.Bool(jsonLogsFlag.Name))
}

func handleExitSignal() context.Context {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ctx.Done()
		logger.Info("exit signal received")
		cancel()
	}()
	return ctx
}

func checkClockOffset() {
	resp, err := ntp.Query("pool.ntp.org")
	if err != nil {
		logger.Debug("failed to access NTP", "err", err)
		return
	}
	offset := resp.ClockOffset
	if offset < 0 {
		offset = -offset
	}
	if offset > maxClockOffset {
		logger.Warn("clock offset detected", "offset", gethcommon.PrettyDuration(resp.ClockOffset))
	}
}

func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

func startMetricsServer(addr string) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen metrics API addr [%v]", addr)
	}

	router := mux.NewRouter()
	router.PathPrefix("/metrics").Handler(metrics.HTTPHandler())
	handler := handlers.CompressHandler(router)

	srv := &http.Server{Handler: handler, ReadHeaderTimeout: time.Second, ReadTimeout: 5 * time.Second}
	var goes co.Goes
	goes.Go(func() {
		srv.Serve(listener)
	})
	return "http://" + listener.Addr().String() + "/metrics", func() {
		srv.Close()
		goes.Wait()
	}, nil
}

func printStartupMessage(cfg *config.Resolved, apiURL string) {
	nodes := strings.Join(cfg.Nodes, ", ")
	if nodes == "" {
		nodes = "discovered via " + cfg.Discovery
	}
	referrer := "none"
	if cfg.Referrer != nil {
		referrer = cfg.Referrer.String()
	}

	fmt.Printf(`Starting %v
    Network      [ %v chainTag 0x%02x ]
    Nodes        [ %v ]
    Treasury     [ %v ]
    Referrer     [ %v ]
    Bridge       [ %v ]
    API portal   [ %v ]
`,
		"stakesync "+fullVersion(),
		cfg.Network.DisplayName, cfg.Network.ChainTag,
		nodes,
		cfg.Treasury,
		referrer,
		cfg.Bridge,
		apiURL)
}
