// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"

	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/config"
	"github.com/vechain/stakesync/endpoint"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/syncer"
	"github.com/vechain/stakesync/thor"
)

// service holds the long lived sync components shared by the commands.
type service struct {
	cfg      *config.Resolved
	model    *model.Model
	errs     *errmsg.Channel
	counter  *reqcount.Counter
	acquirer *endpoint.Acquirer
	engine   *syncer.Engine
	times    *syncer.TimesRefresher
	bridge   *bridge.Client
}

func loadConfig(ctx *cli.Context) (*config.Resolved, error) {
	network, err := thor.ParseNetwork(ctx.String(networkFlag.Name))
	if err != nil {
		return nil, errors.Wrap(err, "-network")
	}
	cfg, err := config.Load(ctx.String(configFlag.Name))
	if err != nil {
		return nil, err
	}
	if n, ok := cfg.Networks[network.Name]; ok {
		if v := ctx.String(treasuryFlag.Name); v != "" {
			n.Treasury = v
		}
		if v := ctx.String(referrerFlag.Name); v != "" {
			n.Referrer = v
		}
	}
	return cfg.Resolve(network)
}

func newService(ctx *cli.Context) (*service, error) {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return nil, err
	}

	svc := &service{
		cfg:     cfg,
		model:   model.New(cfg.Network),
		errs:    &errmsg.Channel{},
		counter: &reqcount.Counter{},
	}

	dial := endpoint.NodeDialer(cfg.Treasury)
	var resolver endpoint.Resolver
	if len(cfg.Nodes) > 0 {
		resolver = endpoint.NewStaticResolver(cfg.Nodes, dial)
	} else {
		resolver = endpoint.NewDiscoveryResolver(cfg.Discovery, dial)
	}
	svc.acquirer = endpoint.NewAcquirer(resolver, cfg.Network, svc.counter, cfg.Intervals.Retry)

	opts := syncer.DefaultOptions
	opts.UpdateInterval = cfg.Intervals.Update
	opts.RetryDelay = cfg.Intervals.Retry
	if svc.engine, err = syncer.NewEngine(svc.acquirer, svc.model, svc.counter, svc.errs, opts); err != nil {
		return nil, err
	}
	svc.times = syncer.NewTimesRefresher(svc.acquirer, svc.model, svc.counter, cfg.Intervals.Retry)

	if svc.bridge, err = bridge.NewClient(cfg.Bridge); err != nil {
		return nil, errors.Wrap(err, "bridge")
	}
	return svc, nil
}

// start runs the sync loops until ctx is done.
func (s *service) start(ctx context.Context, goes *co.Goes) {
	goes.Loop(ctx, s.acquirer.Run, s.engine.Run, s.times.Run)
}
