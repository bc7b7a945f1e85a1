// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package endpoint

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/stakesync/thor"
)

// Resolver finds a reachable node for a network.
type Resolver interface {
	Resolve(ctx context.Context, network *thor.Network) (Handle, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, network *thor.Network) (Handle, error)

func (f ResolverFunc) Resolve(ctx context.Context, network *thor.Network) (Handle, error) {
	return f(ctx, network)
}

var errNoNodes = errors.New("no node available")

// probe returns the first handle that answers a best block request.
func probe(ctx context.Context, dial Dialer, urls []string) (Handle, error) {
	if len(urls) == 0 {
		return nil, errNoNodes
	}
	var lastErr error
	for _, u := range urls {
		h := dial(u)
		if _, err := h.BestBlock(ctx); err != nil {
			lastErr = errors.WithMessagef(err, "probe %v", u)
			if ctx.Err() != nil {
				break
			}
			continue
		}
		return h, nil
	}
	return nil, lastErr
}

// StaticResolver probes a fixed list of node URLs in order.
type StaticResolver struct {
	urls []string
	dial Dialer
}

func NewStaticResolver(urls []string, dial Dialer) *StaticResolver {
	return &StaticResolver{urls: urls, dial: dial}
}

func (r *StaticResolver) Resolve(ctx context.Context, _ *thor.Network) (Handle, error) {
	return probe(ctx, r.dial, r.urls)
}

// DiscoveryResolver asks a discovery service for the nodes of a network and
// probes them in random order.
type DiscoveryResolver struct {
	url    string
	dial   Dialer
	client *http.Client
}

func NewDiscoveryResolver(discoveryURL string, dial Dialer) *DiscoveryResolver {
	return &DiscoveryResolver{
		url:    strings.TrimRight(discoveryURL, "/"),
		dial:   dial,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *DiscoveryResolver) Resolve(ctx context.Context, network *thor.Network) (Handle, error) {
	urls, err := r.nodes(ctx, network)
	if err != nil {
		return nil, err
	}
	rand.Shuffle(len(urls), func(i, j int) { urls[i], urls[j] = urls[j], urls[i] }) //#nosec G404
	return probe(ctx, r.dial, urls)
}

func (r *DiscoveryResolver) nodes(ctx context.Context, network *thor.Network) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url+"/nodes?network="+url.QueryEscape(network.Name), nil)
	if err != nil {
		return nil, errors.Wrap(err, "new discovery request")
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "discovery request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read discovery response")
	}
	if resp.StatusCode != http.StatusOK {
		return nil, errors.Errorf("discovery status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var urls []string
	if err := json.Unmarshal(body, &urls); err != nil {
		return nil, errors.Wrap(err, "decode discovery response")
	}
	return urls, nil
}
