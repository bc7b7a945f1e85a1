// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// stakesync keeps a staking account in sync with the chain and relays stake
// and unstake requests to the connected wallet.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakesync/api"
	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/metrics"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/session"
	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/txcoord"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	common := []cli.Flag{
		networkFlag,
		configFlag,
		treasuryFlag,
		verbosityFlag,
		jsonLogsFlag,
	}

	app := cli.App{
		Version:   fullVersion(),
		Name:      "stakesync",
		Usage:     "Staking client for VeChain Thor",
		Copyright: "2025 VeChain Foundation <https://vechain.org/>",
		Flags: append(common,
			referrerFlag,
			apiAddrFlag,
			apiCorsFlag,
			enableMetricsFlag,
			metricsAddrFlag,
		),
		Action: runAction,
		Commands: []cli.Command{
			{
				Name:   "snapshot",
				Usage:  "read one snapshot of an account and print it",
				Flags:  append(common, addressFlag, timeoutFlag),
				Action: snapshotAction,
			},
			{
				Name:   "connect",
				Usage:  "print the wallet connect link and its QR code",
				Flags:  common,
				Action: connectAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel := initLogger(ctx)
	svc, err := newService(ctx)
	if err != nil {
		return err
	}
	go checkClockOffset()

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
		url, closeFunc, err := startMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return fmt.Errorf("unable to start metrics server - %w", err)
		}
		logger.Info("metrics server started", "url", url)
		defer closeFunc()
	}

	coord := txcoord.New(svc.model, svc.bridge, svc.engine, svc.counter, svc.cfg.Treasury, txcoord.Options{
		PollInterval: svc.cfg.Intervals.Poll,
		PollAttempts: svc.cfg.Intervals.PollAttempts,
		ValidFor:     svc.cfg.Intervals.TxValidity,
		Referrer:     svc.cfg.Referrer,
	})
	defer func() { logger.Info("stopping transaction coordinator..."); coord.Close() }()

	sess := session.New(svc.bridge, svc.model, svc.errs, svc.cfg.Manifest, svc.cfg.Intervals.Retry)

	handler, closeSubs := api.New(api.Deps{
		Model:       svc.model,
		Errors:      svc.errs,
		Counter:     svc.counter,
		Coordinator: coord,
		Connector:   sess,
		LogLevel:    logLevel,
	}, api.Options{
		AllowedOrigins: ctx.String(apiCorsFlag.Name),
		EnableMetrics:  ctx.Bool(enableMetricsFlag.Name),
		HealthyWithin:  svc.cfg.Intervals.Update + svc.cfg.Intervals.Retry,
	})
	apiURL, closeAPI, err := startAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); closeSubs(); closeAPI() }()

	printStartupMessage(svc.cfg, apiURL)

	exitSignal := handleExitSignal()
	var goes co.Goes
	svc.start(exitSignal, &goes)
	goes.Loop(exitSignal, sess.Run)

	<-exitSignal.Done()
	goes.Wait()
	return nil
}

func snapshotAction(ctx *cli.Context) error {
	initLogger(ctx)
	addr, err := thor.ParseAddress(ctx.String(addressFlag.Name))
	if err != nil {
		return errors.Wrap(err, "-address")
	}
	svc, err := newService(ctx)
	if err != nil {
		return err
	}

	exitSignal := handleExitSignal()
	timeoutCtx, cancel := context.WithTimeout(exitSignal, ctx.Duration(timeoutFlag.Name))
	defer cancel()

	svc.model.SetAddress(model.Some(addr))
	changes := svc.model.Changes()
	defer changes.Stop()

	var goes co.Goes
	svc.start(timeoutCtx, &goes)
	defer goes.Wait()
	defer cancel()

	for {
		st := svc.model.State()
		if !st.CommittedAt.IsZero() && st.Times.Present() {
			cfg := spew.ConfigState{Indent: "  ", DisablePointerAddresses: true, DisableCapacities: true, SortKeys: true}
			cfg.Dump(model.NewView(st))
			return nil
		}
		select {
		case <-timeoutCtx.Done():
			if msg, ok := svc.errs.Message(); ok {
				return errors.Errorf("no snapshot: %s", msg.Text)
			}
			return errors.New("no snapshot before timeout")
		case <-changes.C():
		}
	}
}

func connectAction(ctx *cli.Context) error {
	initLogger(ctx)
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	client, err := bridge.NewClient(cfg.Bridge)
	if err != nil {
		return errors.Wrap(err, "bridge")
	}

	reqCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	link, err := session.New(client, model.New(cfg.Network), nil, cfg.Manifest, 0).Connect(reqCtx)
	if err != nil {
		return err
	}
	fmt.Println(link.URL)
	fmt.Print(link.QR)
	return nil
}
