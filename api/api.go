// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package api exposes the client state and its mutators over HTTP, with a
// websocket feed pushing the state on every change.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
	"github.com/vechain/stakesync/session"
)

var logger = log.WithContext("pkg", "api")

// Coordinator submits transactions and edits the form state.
type Coordinator interface {
	Submit(ctx context.Context) (*bridge.Receipt, error)
	Acknowledge() bool
	SetActiveAction(a model.Action)
	SetAmountInput(text string)
	SetAmountToMax()
}

// Connector hands out wallet connect links.
type Connector interface {
	Connect(ctx context.Context) (*session.Link, error)
}

type Deps struct {
	Model       *model.Model
	Errors      *errmsg.Channel
	Counter     *reqcount.Counter
	Coordinator Coordinator
	Connector   Connector
	LogLevel    *slog.LevelVar // nil disables /admin/loglevel
}

type Options struct {
	AllowedOrigins string
	EnableMetrics  bool
	// HealthyWithin is the longest time since the last commit for /health to report healthy.
	HealthyWithin time.Duration
}

// New return api router and a function closing open websocket subscriptions.
func New(deps Deps, opts Options) (http.Handler, func()) {
	origins := strings.Split(strings.TrimSpace(opts.AllowedOrigins), ",")
	for i, o := range origins {
		origins[i] = strings.ToLower(strings.TrimSpace(o))
	}

	router := mux.NewRouter()

	views := newViews(deps.Model, deps.Errors, deps.Counter)
	newStateAPI(views, deps.Model, deps.Coordinator, deps.Connector).Mount(router, "")
	subs := newSubscriptions(views, origins)
	subs.Mount(router, "/subscriptions")
	newHealth(deps.Model, opts.HealthyWithin).Mount(router, "/health")
	if deps.LogLevel != nil {
		newLogLevel(deps.LogLevel).Mount(router, "/admin/loglevel")
	}

	if opts.EnableMetrics {
		router.Use(metricsMiddleware)
	}

	handler := handlers.CompressHandler(router)
	handler = handlers.CORS(
		handlers.AllowedOrigins(origins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"content-type"}),
	)(handler)

	return handler, subs.Close
}
