// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package session follows the wallet connected through the bridge and keeps
// the tracked address in step with it.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/skip2/go-qrcode"

	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/co"
	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/log"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/thor"
)

const (
	MsgNetworkMismatch    = "Your wallet must be on "
	networkMismatchExpiry = 10 * time.Second
)

var logger = log.WithContext("pkg", "session")

// Bridge is the part of the bridge client a session needs.
type Bridge interface {
	SubscribeStatus(ctx context.Context) (<-chan bridge.EventWrapper[*bridge.Status], error)
	ConnectLink(ctx context.Context, manifestURL string) (string, error)
	Disconnect(ctx context.Context) error
}

// Link is a connect link together with its terminal QR rendering.
type Link struct {
	URL string `json:"link"`
	QR  string `json:"qr"`
}

type Session struct {
	bridge      Bridge
	model       *model.Model
	errs        *errmsg.Channel
	network     *thor.Network
	manifestURL string
	retryDelay  time.Duration
}

func New(b Bridge, m *model.Model, errs *errmsg.Channel, manifestURL string, retryDelay time.Duration) *Session {
	return &Session{
		bridge:      b,
		model:       m,
		errs:        errs,
		network:     m.State().Network,
		manifestURL: manifestURL,
		retryDelay:  retryDelay,
	}
}

// Run consumes status events until ctx is done, resubscribing after the
// stream breaks.
func (s *Session) Run(ctx context.Context) {
	for {
		events, err := s.bridge.SubscribeStatus(ctx)
		if err != nil {
			logger.Debug("failed to subscribe wallet status", "retry", s.retryDelay, "err", err)
		} else if !s.consume(ctx, events) {
			return
		}
		if !co.Sleep(ctx, s.retryDelay) {
			return
		}
	}
}

// consume handles events until the stream breaks. It returns false when ctx
// is done first, whatever the state of the stream.
func (s *Session) consume(ctx context.Context, events <-chan bridge.EventWrapper[*bridge.Status]) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return true
			}
			if ev.Error != nil {
				logger.Debug("wallet status stream broken", "err", ev.Error)
				return true
			}
			s.HandleStatus(ctx, ev.Data)
		}
	}
}

// HandleStatus applies one status event to the model.
func (s *Session) HandleStatus(ctx context.Context, st *bridge.Status) {
	if st == nil || st.Disconnected || st.Address == nil {
		s.model.SetAddress(model.None[thor.Address]())
		return
	}

	if st.ChainTag == s.network.ChainTag {
		s.model.SetAddress(model.Some(*st.Address))
		return
	}

	logger.Info("wallet on another network, disconnecting", "chainTag", st.ChainTag, "want", s.network.ChainTag)
	s.model.SetAddress(model.None[thor.Address]())
	s.errs.Set(MsgNetworkMismatch+s.network.DisplayName, networkMismatchExpiry)
	if err := s.bridge.Disconnect(ctx); err != nil {
		logger.Warn("failed to disconnect wallet", "err", err)
	}
}

// Connect asks the bridge for a link the wallet opens to connect.
func (s *Session) Connect(ctx context.Context) (*Link, error) {
	url, err := s.bridge.ConnectLink(ctx, s.manifestURL)
	if err != nil {
		return nil, err
	}

	qr, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("failed to generate QR code: %w", err)
	}
	return &Link{URL: url, QR: qr.ToSmallString(false)}, nil
}
