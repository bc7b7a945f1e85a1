// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"time"

	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/stakesync/log"
)

var (
	networkFlag = cli.StringFlag{
		Name:  "network",
		Value: "main",
		Usage: "the network to follow (main|test)",
	}
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "path to a YAML configuration file",
	}
	treasuryFlag = cli.StringFlag{
		Name:  "treasury",
		Usage: "treasury contract address, overrides the configuration file",
	}
	referrerFlag = cli.StringFlag{
		Name:  "referrer",
		Usage: "referrer address attached to deposits",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:8680",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Value: "",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	verbosityFlag = cli.Uint64Flag{
		Name:  "verbosity",
		Value: log.LegacyLevelInfo,
		Usage: "log verbosity (0-9)",
	}
	jsonLogsFlag = cli.BoolFlag{
		Name:  "json-logs",
		Usage: "output logs in JSON format",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables metrics collection",
	}
	metricsAddrFlag = cli.StringFlag{
		Name:  "metrics-addr",
		Value: "localhost:2112",
		Usage: "metrics service listening address",
	}
	addressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "account address to read",
	}
	timeoutFlag = cli.DurationFlag{
		Name:  "timeout",
		Value: time.Minute,
		Usage: "give up after this long",
	}
)
