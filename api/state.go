// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package api

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	pkgerrors "github.com/pkg/errors"

	"github.com/vechain/stakesync/api/utils"
	"github.com/vechain/stakesync/bridge"
	"github.com/vechain/stakesync/model"
	"github.com/vechain/stakesync/txcoord"
)

type stateAPI struct {
	views     *views
	model     *model.Model
	coord     Coordinator
	connector Connector
}

func newStateAPI(views *views, m *model.Model, coord Coordinator, connector Connector) *stateAPI {
	return &stateAPI{
		views:     views,
		model:     m,
		coord:     coord,
		connector: connector,
	}
}

type actionRequest struct {
	Action string `json:"action"`
}

type amountRequest struct {
	Text string `json:"text"`
}

func (s *stateAPI) handleGetState(w http.ResponseWriter, _ *http.Request) error {
	return utils.WriteJSON(w, s.views.current())
}

func (s *stateAPI) handleSetAction(w http.ResponseWriter, req *http.Request) error {
	var body actionRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(pkgerrors.WithMessage(err, "body"))
	}
	action, err := model.ParseAction(body.Action)
	if err != nil {
		return utils.BadRequest(err)
	}
	s.coord.SetActiveAction(action)
	return utils.WriteJSON(w, s.views.current())
}

func (s *stateAPI) handleSetAmount(w http.ResponseWriter, req *http.Request) error {
	var body amountRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(pkgerrors.WithMessage(err, "body"))
	}
	s.coord.SetAmountInput(body.Text)
	return utils.WriteJSON(w, s.views.current())
}

func (s *stateAPI) handleSetAmountToMax(w http.ResponseWriter, _ *http.Request) error {
	s.coord.SetAmountToMax()
	return utils.WriteJSON(w, s.views.current())
}

func (s *stateAPI) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	receipt, err := s.coord.Submit(req.Context())
	switch {
	case err == nil:
		return utils.WriteJSON(w, receipt)
	case errors.Is(err, txcoord.ErrInvalidAmount):
		return utils.BadRequest(err)
	case errors.Is(err, txcoord.ErrNotReady), errors.Is(err, txcoord.ErrBusy):
		return utils.Conflict(err)
	case errors.Is(err, bridge.ErrRejected):
		return utils.HTTPError(err, http.StatusForbidden)
	default:
		return utils.HTTPError(pkgerrors.WithMessage(err, "submit"), http.StatusBadGateway)
	}
}

func (s *stateAPI) handleAcknowledge(w http.ResponseWriter, _ *http.Request) error {
	if !s.coord.Acknowledge() {
		return utils.Conflict(errors.New("no finished transaction to acknowledge"))
	}
	return utils.WriteJSON(w, s.views.current())
}

func (s *stateAPI) handleConnect(w http.ResponseWriter, req *http.Request) error {
	link, err := s.connector.Connect(req.Context())
	if err != nil {
		return utils.HTTPError(pkgerrors.WithMessage(err, "connect"), http.StatusBadGateway)
	}
	return utils.WriteJSON(w, link)
}

func (s *stateAPI) Mount(root *mux.Router, pathPrefix string) {
	sub := root
	if pathPrefix != "" {
		sub = root.PathPrefix(pathPrefix).Subrouter()
	}

	sub.Path("/state").
		Methods(http.MethodGet).
		Name("GET /state").
		HandlerFunc(utils.WrapHandlerFunc(s.handleGetState))
	sub.Path("/action").
		Methods(http.MethodPost).
		Name("POST /action").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetAction))
	sub.Path("/amount").
		Methods(http.MethodPost).
		Name("POST /amount").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetAmount))
	sub.Path("/amount/max").
		Methods(http.MethodPost).
		Name("POST /amount/max").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSetAmountToMax))
	sub.Path("/submit").
		Methods(http.MethodPost).
		Name("POST /submit").
		HandlerFunc(utils.WrapHandlerFunc(s.handleSubmit))
	sub.Path("/acknowledge").
		Methods(http.MethodPost).
		Name("POST /acknowledge").
		HandlerFunc(utils.WrapHandlerFunc(s.handleAcknowledge))
	sub.Path("/connect").
		Methods(http.MethodPost).
		Name("POST /connect").
		HandlerFunc(utils.WrapHandlerFunc(s.handleConnect))
}
