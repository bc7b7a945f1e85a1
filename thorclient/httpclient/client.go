// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package httpclient provides an HTTP client for the few VeChainThor REST
// endpoints the staking client reads: blocks, accounts and clause inspection.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vechain/stakesync/thor"
	"github.com/vechain/stakesync/thorclient/common"
)

// Client represents the HTTP client for interacting with a Thor node.
type Client struct {
	url string
	c   *http.Client
}

// New creates a new Client with the provided URL.
func New(url string) *Client {
	return NewWithHTTP(url, http.DefaultClient)
}

func NewWithHTTP(url string, c *http.Client) *Client {
	return &Client{
		url: strings.TrimRight(url, "/"),
		c:   c,
	}
}

// URL returns the node base URL.
func (c *Client) URL() string {
	return c.url
}

// GetBlock retrieves a collapsed block by revision (number, id, best or finalized).
func (c *Client) GetBlock(ctx context.Context, revision string) (*common.Block, error) {
	body, err := c.httpGET(ctx, c.url+"/blocks/"+revision)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve block - %w", err)
	}

	if len(body) == 0 || bytes.Equal(bytes.TrimSpace(body), []byte("null")) {
		return nil, common.ErrNotFound
	}

	var block common.Block
	if err = json.Unmarshal(body, &block); err != nil {
		return nil, fmt.Errorf("unable to unmarshal block - %w", err)
	}
	return &block, nil
}

// GetAccount retrieves the account details for the given address at the specified revision.
func (c *Client) GetAccount(ctx context.Context, addr thor.Address, revision string) (*common.Account, error) {
	url := c.url + "/accounts/" + addr.String()
	if revision != "" {
		url += "?revision=" + revision
	}

	body, err := c.httpGET(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve account - %w", err)
	}

	var account common.Account
	if err = json.Unmarshal(body, &account); err != nil {
		return nil, fmt.Errorf("unable to unmarshal account - %w", err)
	}
	return &account, nil
}

// InspectClauses performs a clause inspection on batch call data at the specified revision.
func (c *Client) InspectClauses(ctx context.Context, calldata *common.BatchCallData, revision string) ([]*common.CallResult, error) {
	url := c.url + "/accounts/*"
	if revision != "" {
		url += "?revision=" + revision
	}

	body, err := c.httpPOST(ctx, url, calldata)
	if err != nil {
		return nil, fmt.Errorf("unable to request inspect clauses - %w", err)
	}

	var results []*common.CallResult
	if err = json.Unmarshal(body, &results); err != nil {
		return nil, fmt.Errorf("unable to unmarshal inspection result - %w", err)
	}
	return results, nil
}

func (c *Client) httpRequest(ctx context.Context, method, url string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, payload)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.c.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error performing request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http error - Status Code %d - %s - %w", resp.StatusCode, bytes.TrimSpace(body), common.ErrNot200Status)
	}
	return body, nil
}

func (c *Client) httpGET(ctx context.Context, url string) ([]byte, error) {
	return c.httpRequest(ctx, http.MethodGet, url, nil)
}

func (c *Client) httpPOST(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal payload - %w", err)
	}
	return c.httpRequest(ctx, http.MethodPost, url, bytes.NewReader(data))
}
