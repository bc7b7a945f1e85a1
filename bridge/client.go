// Copyright (c) 2025 The VeChainThor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package bridge talks to the wallet bridge: it forwards transaction requests
// to the connected wallet and streams the wallet connection status.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
)

var (
	// ErrRejected is returned when the wallet or its user declined a request.
	ErrRejected      = errors.New("request rejected")
	ErrUnexpectedMsg = errors.New("unexpected message")
)

type Client struct {
	baseURL string
	host    string
	scheme  string
	c       *http.Client
}

// NewClient accepts http(s) and ws(s) URLs of the bridge.
func NewClient(rawURL string) (*Client, error) {
	var host, scheme, httpScheme string

	switch {
	case strings.HasPrefix(rawURL, "https://") || strings.HasPrefix(rawURL, "wss://"):
		host = strings.TrimPrefix(strings.TrimPrefix(rawURL, "https://"), "wss://")
		scheme, httpScheme = "wss", "https"
	case strings.HasPrefix(rawURL, "http://") || strings.HasPrefix(rawURL, "ws://"):
		host = strings.TrimPrefix(strings.TrimPrefix(rawURL, "http://"), "ws://")
		scheme, httpScheme = "ws", "http"
	default:
		return nil, fmt.Errorf("invalid url")
	}
	host = strings.TrimSuffix(host, "/")

	return &Client{
		baseURL: httpScheme + "://" + host,
		host:    host,
		scheme:  scheme,
		c:       http.DefaultClient,
	}, nil
}

// SendTransaction blocks until the wallet accepted or rejected req.
func (c *Client) SendTransaction(ctx context.Context, req *Request) (*Receipt, error) {
	body, err := c.httpPOST(ctx, "/transactions", req)
	if err != nil {
		return nil, fmt.Errorf("unable to send transaction - %w", err)
	}

	var receipt Receipt
	if err := json.Unmarshal(body, &receipt); err != nil {
		return nil, fmt.Errorf("unable to unmarshal receipt - %w", err)
	}
	return &receipt, nil
}

// ConnectLink returns the universal link a wallet opens to connect.
func (c *Client) ConnectLink(ctx context.Context, manifestURL string) (string, error) {
	body, err := c.httpRequest(ctx, http.MethodGet, "/connect?manifest="+url.QueryEscape(manifestURL), nil)
	if err != nil {
		return "", fmt.Errorf("unable to retrieve connect link - %w", err)
	}

	var res connectResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return "", fmt.Errorf("unable to unmarshal connect link - %w", err)
	}
	if res.Link == "" {
		return "", fmt.Errorf("empty connect link")
	}
	return res.Link, nil
}

// Disconnect drops the connected wallet.
func (c *Client) Disconnect(ctx context.Context) error {
	if _, err := c.httpPOST(ctx, "/disconnect", struct{}{}); err != nil {
		return fmt.Errorf("unable to disconnect - %w", err)
	}
	return nil
}

// SubscribeStatus streams connection status events until ctx ends or the
// connection fails. A failure is delivered as the last event.
func (c *Client) SubscribeStatus(ctx context.Context) (<-chan EventWrapper[*Status], error) {
	conn, err := c.connect(ctx, "/events")
	if err != nil {
		return nil, fmt.Errorf("unable to connect - %w", err)
	}
	return subscribe[Status](ctx, conn), nil
}

func subscribe[T any](ctx context.Context, conn *websocket.Conn) <-chan EventWrapper[*T] {
	eventChan := make(chan EventWrapper[*T])

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	go func() {
		defer close(eventChan)
		defer stop()
		defer conn.Close()

		for {
			var data T
			if err := conn.ReadJSON(&data); err != nil {
				if ctx.Err() != nil {
					return
				}
				select {
				case eventChan <- EventWrapper[*T]{Error: fmt.Errorf("%w: %w", ErrUnexpectedMsg, err)}:
				case <-ctx.Done():
				}
				return
			}

			select {
			case eventChan <- EventWrapper[*T]{Data: &data}:
			case <-ctx.Done():
				return
			}
		}
	}()
	return eventChan
}

func (c *Client) connect(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	u := url.URL{
		Scheme: c.scheme,
		Host:   c.host,
		Path:   endpoint,
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func (c *Client) httpRequest(ctx context.Context, method, path string, payload io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, payload)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if payload != nil {
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

	switch {
	case resp.StatusCode == http.StatusOK:
		return body, nil
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		var res errorResponse
		if json.Unmarshal(body, &res) == nil && res.Error != "" {
			return nil, fmt.Errorf("%w: %s", ErrRejected, res.Error)
		}
		return nil, fmt.Errorf("%w: status code %d", ErrRejected, resp.StatusCode)
	default:
		return nil, fmt.Errorf("http error - Status Code %d - %s", resp.StatusCode, bytes.TrimSpace(body))
	}
}

func (c *Client) httpPOST(ctx context.Context, path string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("unable to marshal payload - %w", err)
	}
	return c.httpRequest(ctx, http.MethodPost, path, bytes.NewReader(data))
}
