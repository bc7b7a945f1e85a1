// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/vechain/stakesync/api/utils"
	"github.com/vechain/stakesync/model"
)

type healthStatus struct {
	Healthy     bool       `json:"healthy"`
	Block       uint32     `json:"block"`
	CommittedAt *time.Time `json:"committedAt"`
}

type health struct {
	model  *model.Model
	within time.Duration
}

func newHealth(m *model.Model, within time.Duration) *health {
	return &health{model: m, within: within}
}

func (h *health) status() *healthStatus {
	st := h.model.State()
	status := &healthStatus{Block: st.Block}
	if !st.CommittedAt.IsZero() {
		status.CommittedAt = &st.CommittedAt
		status.Healthy = time.Since(st.CommittedAt) <= h.within
	}
	return status
}

func (h *health) handleGetHealth(w http.ResponseWriter, _ *http.Request) error {
	status := h.status()
	if !status.Healthy {
		return utils.WriteStatusJSON(w, http.StatusServiceUnavailable, status)
	}
	return utils.WriteJSON(w, status)
}

func (h *health) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("GET /health").
		HandlerFunc(utils.WrapHandlerFunc(h.handleGetHealth))
}
