// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package rendezvous

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bureau-foundation/tether/lib/codec"
	"github.com/bureau-foundation/tether/lib/netutil"
	"github.com/bureau-foundation/tether/transport"
)

var _ transport.Signaler = (*Client)(nil)

// ClientOptions configure a Client.
type ClientOptions struct {
	// HTTPClient defaults to a client with a 10 second timeout.
	HTTPClient *http.Client

	// Encoding compresses request bodies. Responses are always
	// requested with zstd and lz4 advertised.
	Encoding string
}

// Client talks to a relay.
type Client struct {
	baseURL    string
	httpClient *http.Client
	encoding   string
}

// NewClient returns a client for the relay at baseURL.
func NewClient(baseURL string, options ClientOptions) (*Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return nil, fmt.Errorf("rendezvous: %q is not an http(s) URL", baseURL)
	}
	if _, err := encodeBody(nil, options.Encoding); err != nil {
		return nil, fmt.Errorf("rendezvous: %w", err)
	}
	httpClient := options.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
		encoding:   options.Encoding,
	}, nil
}

func (c *Client) PublishOffer(ctx context.Context, offer transport.SignalMessage) error {
	return c.post(ctx, "/v1/offers/"+transport.TargetKey(offer.To), offer)
}

func (c *Client) PollOffers(ctx context.Context, target ed25519.PublicKey) ([]transport.SignalMessage, error) {
	var offers []transport.SignalMessage
	if _, err := c.get(ctx, "/v1/offers/"+transport.TargetKey(target), &offers); err != nil {
		return nil, err
	}
	return offers, nil
}

func (c *Client) PublishAnswer(ctx context.Context, answer transport.SignalMessage) error {
	return c.post(ctx, "/v1/answers/"+url.PathEscape(answer.ID), answer)
}

func (c *Client) PollAnswer(ctx context.Context, offerID string) (transport.SignalMessage, bool, error) {
	var answer transport.SignalMessage
	found, err := c.get(ctx, "/v1/answers/"+url.PathEscape(offerID), &answer)
	return answer, found, err
}

// Healthy reports whether the relay answers its health check.
func (c *Client) Healthy(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/healthz", nil)
	if err != nil {
		return err
	}
	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("rendezvous health check: %w", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("rendezvous health check: %s", response.Status)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, message transport.SignalMessage) error {
	data, err := codec.Marshal(message)
	if err != nil {
		return fmt.Errorf("encoding signal: %w", err)
	}
	body, err := encodeBody(data, c.encoding)
	if err != nil {
		return err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", contentType)
	if c.encoding != EncodingIdentity {
		request.Header.Set("Content-Encoding", c.encoding)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusAccepted {
		return fmt.Errorf("POST %s: %s: %s", path, response.Status, strings.TrimSpace(netutil.ErrorBody(response.Body)))
	}
	return nil
}

// get decodes the response into v. It returns false on 204.
func (c *Client) get(ctx context.Context, path string, v any) (bool, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return false, err
	}
	request.Header.Set("Accept", contentType)
	request.Header.Set("Accept-Encoding", EncodingZstd+", "+EncodingLZ4)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK:
	case http.StatusNoContent:
		return false, nil
	default:
		return false, fmt.Errorf("GET %s: %s: %s", path, response.Status, strings.TrimSpace(netutil.ErrorBody(response.Body)))
	}

	data, err := decodeBody(response.Body, response.Header.Get("Content-Encoding"), MaxBodySize*MaxOffersPerTarget)
	if err != nil {
		return false, fmt.Errorf("GET %s: %w", path, err)
	}
	if err := codec.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("GET %s: decoding: %w", path, err)
	}
	return true, nil
}
