// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"context"

	"github.com/vechain/stakesync/errmsg"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/reqcount"
)

// views assembles the full view out of the model, the error channel and the
// request counter.
type views struct {
	model   *model.Model
	errs    *errmsg.Channel
	counter *reqcount.Counter
}

func newViews(m *model.Model, errs *errmsg.Channel, counter *reqcount.Counter) *views {
	return &views{model: m, errs: errs, counter: counter}
}

func (v *views) current() *model.View {
	view := model.NewView(v.model.State())
	if msg, ok := v.errs.Message(); ok {
		view.ErrorMessage = msg.Text
	}
	view.Requests = v.counter.Count()
	return view
}

// watch sends a signal on the returned channel after any change of the
// view, coalescing bursts. The channel is closed once ctx is done.
func (v *views) watch(ctx context.Context) <-chan struct{} {
	out := make(chan struct{}, 1)
	state, errs, requests := v.model.Changes(), v.errs.Changes(), v.counter.Changes()

	go func() {
		defer close(out)
		defer state.Stop()
		defer errs.Stop()
		defer requests.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-state.C():
			case <-errs.C():
			case <-requests.C():
			}
			select {
			case out <- struct{}{}:
			default:
			}
		}
	}()
	return out
}
