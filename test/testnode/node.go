// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package testnode serves an in-memory subset of the Thor REST API for tests:
// best block, accounts and clause inspection against fake contracts.
package testnode

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/gorilla/mux"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient/common"
)

var errInjected = errors.New("injected failure")

// Method fakes one contract method. The returned values are packed with the
// method outputs, an error reverts the clause.
type Method func(revision string, args []any) ([]any, error)

type contract struct {
	abi     *abi.ABI
	methods map[string]Method
}

// Node represents a fake Thor node backed by an httptest server.
type Node struct {
	mu        sync.Mutex
	best      uint32
	balances  map[thor.Address]*big.Int
	contracts map[thor.Address]*contract
	failNext  int
	failPaths map[string]int
	failCalls map[string]int
	calls     map[string]int
	server    *httptest.Server
}

// New starts a fake node at block 1.
func New() *Node {
	n := &Node{
		best:      1,
		balances:  make(map[thor.Address]*big.Int),
		contracts: make(map[thor.Address]*contract),
		failPaths: make(map[string]int),
		failCalls: make(map[string]int),
		calls:     make(map[string]int),
	}

	router := mux.NewRouter()
	router.HandleFunc("/blocks/{revision}", n.handleBlock).Methods(http.MethodGet)
	router.HandleFunc("/accounts/*", n.handleInspect).Methods(http.MethodPost)
	router.HandleFunc("/accounts/{address}", n.handleAccount).Methods(http.MethodGet)
	n.server = httptest.NewServer(n.failing(router))
	return n
}

func (n *Node) URL() string {
	return n.server.URL
}

func (n *Node) Close() {
	n.server.Close()
}

func (n *Node) SetBestBlock(num uint32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.best = num
}

func (n *Node) SetBalance(addr thor.Address, balance *big.Int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.balances[addr] = new(big.Int).Set(balance)
}

// Deploy installs a fake contract at addr. Methods missing from methods revert.
func (n *Node) Deploy(addr thor.Address, contractABI *abi.ABI, methods map[string]Method) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.contracts[addr] = &contract{abi: contractABI, methods: methods}
}

// FailNext makes the next count requests answer 500.
func (n *Node) FailNext(count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failNext = count
}

// FailPath makes the next count requests to path answer 500.
func (n *Node) FailPath(path string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failPaths[path] = count
}

// FailMethod makes the next count clause inspections calling the named
// contract method answer 500.
func (n *Node) FailMethod(name string, count int) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.failCalls[name] = count
}

// Calls returns how many times name was served. Names are "blocks",
// "accounts" or a contract method name.
func (n *Node) Calls(name string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls[name]
}

func (n *Node) failing(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n.mu.Lock()
		fail := n.failNext > 0
		if fail {
			n.failNext--
		} else if n.failPaths[r.URL.Path] > 0 {
			n.failPaths[r.URL.Path]--
			fail = true
		}
		n.mu.Unlock()

		if fail {
			http.Error(w, "injected failure", http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (n *Node) handleBlock(w http.ResponseWriter, r *http.Request) {
	n.mu.Lock()
	n.calls["blocks"]++
	best := n.best
	n.mu.Unlock()

	writeJSON(w, &common.Block{Number: best, Timestamp: uint64(best) * 10})
}

func (n *Node) handleAccount(w http.ResponseWriter, r *http.Request) {
	addr, err := thor.ParseAddress(mux.Vars(r)["address"])
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	n.mu.Lock()
	n.calls["accounts"]++
	balance := n.balances[addr]
	_, hasCode := n.contracts[addr]
	n.mu.Unlock()

	if balance == nil {
		balance = new(big.Int)
	}
	writeJSON(w, &common.Account{
		Balance: (*math.HexOrDecimal256)(balance),
		Energy:  (*math.HexOrDecimal256)(new(big.Int)),
		HasCode: hasCode,
	})
}

func (n *Node) handleInspect(w http.ResponseWriter, r *http.Request) {
	var body common.BatchCallData
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	revision := r.URL.Query().Get("revision")

	results := make([]*common.CallResult, 0, len(body.Clauses))
	for _, clause := range body.Clauses {
		res, err := n.call(revision, clause)
		if errors.Is(err, errInjected) {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		results = append(results, res)
	}
	writeJSON(w, results)
}

func (n *Node) call(revision string, clause common.Clause) (*common.CallResult, error) {
	if clause.To == nil {
		return nil, errors.New("contract creation not supported")
	}
	data, err := hexutil.Decode(clause.Data)
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	c, ok := n.contracts[*clause.To]
	n.mu.Unlock()
	if !ok {
		return &common.CallResult{Data: "0x"}, nil
	}
	if len(data) < 4 {
		return &common.CallResult{Data: "0x", Reverted: true, VMError: "execution reverted"}, nil
	}

	method, err := c.abi.MethodById(data[:4])
	if err != nil {
		return &common.CallResult{Data: "0x", Reverted: true, VMError: "execution reverted"}, nil
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	if n.failCalls[method.Name] > 0 {
		n.failCalls[method.Name]--
		n.mu.Unlock()
		return nil, errInjected
	}
	n.calls[method.Name]++
	fn := c.methods[method.Name]
	n.mu.Unlock()

	if fn == nil {
		return &common.CallResult{Data: "0x", Reverted: true, VMError: "execution reverted"}, nil
	}
	out, err := fn(revision, args)
	if err != nil {
		return &common.CallResult{Data: "0x", Reverted: true, VMError: "execution reverted"}, nil
	}
	packed, err := method.Outputs.Pack(out...)
	if err != nil {
		return nil, err
	}
	return &common.CallResult{Data: hexutil.Encode(packed), GasUsed: 21000}, nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
