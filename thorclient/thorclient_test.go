// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package thorclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/stakesync/thor"
)

func TestClient_Revisions(t *testing.T) {
	addr := thor.Address{0xaa}
	var revisions []string

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/blocks/best":
			w.Write([]byte(`{"number":77}`))
		case "/accounts/" + addr.String():
			revisions = append(revisions, r.URL.Query().Get("revision"))
			w.Write([]byte(`{"balance":"0xde0b6b3a7640000","energy":"0x0","hasCode":false}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer ts.Close()

	client := New(ts.URL)
	ctx := context.Background()

	best, err := client.BestBlockNumber(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint32(77), best)

	balance, err := client.Balance(ctx, addr)
	require.NoError(t, err)
	assert.Equal(t, "1000000000000000000", balance.String())

	_, err = client.Balance(ctx, addr, AtBlock(77))
	require.NoError(t, err)

	_, err = client.Account(ctx, addr, Revision("finalized"))
	require.NoError(t, err)

	assert.Equal(t, []string{"best", "77", "finalized"}, revisions)
}
