// MotoLink Core
// Copyright (c) 2026 The MotoLink Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of MotoLink Core.
//
// MotoLink Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// MotoLink Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with MotoLink Core.  If not, see <http://www.gnu.org/licenses/>.


// Package client talks to a running service's API over WebSocket. The CLI
// uses it to drive the session of a service started in the background.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/motolink/motolink-core/pkg/config"
	"github.com/rs/zerolog/log"
)

var (
	ErrRequestTimeout   = errors.New("request timed out")
	ErrInvalidParams    = errors.New("invalid params")
	ErrRequestCancelled = errors.New("request cancelled")
	ErrConnectionClosed = errors.New("connection closed")
)

const APIPath = "/api/v1"

// RPCError is an error response from the service.
type RPCError struct {
	Message string
	Kind    string
	Code    int
}

func (e *RPCError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("%s (%s)", e.Message, e.Kind)
	}
	return e.Message
}

// LocalURL is the WebSocket URL of the service configured in cfg, reached
// over loopback.
func LocalURL(cfg *config.Instance) string {
	port := strconv.Itoa(cfg.APIPort())
	if _, p, err := net.SplitHostPort(cfg.APIListen()); err == nil && p != "" {
		port = p
	}
	u := url.URL{
		Scheme: "ws",
		Host:   net.JoinHostPort("localhost", port),
		Path:   APIPath,
	}
	return u.String()
}

func dial(ctx context.Context, cfg *config.Instance) (*websocket.Conn, error) {
	c, resp, err := websocket.DefaultDialer.DialContext(ctx, LocalURL(cfg), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to api: %w", err)
	}
	return c, nil
}

func closeConn(c *websocket.Conn) {
	if err := c.Close(); err != nil {
		log.Warn().Err(err).Msg("error closing websocket")
	}
}

// LocalClient sends a single method with params to the local running
// service, waits for the response until the request timeout and then
// disconnects. The result is returned as raw JSON.
func LocalClient(
	ctx context.Context,
	cfg *config.Instance,
	method string,
	params string,
) (string, error) {
	id := models.NewStringID(uuid.New().String())
	req := models.RequestObject{
		JSONRPC: "2.0",
		ID:      &id,
		Method:  method,
	}
	if params != "" {
		if !json.Valid([]byte(params)) {
			return "", ErrInvalidParams
		}
		req.Params = json.RawMessage(params)
	}

	c, err := dial(ctx, cfg)
	if err != nil {
		return "", err
	}
	defer closeConn(c)

	done := make(chan struct{})
	var resp *rawResponse
	go func() {
		defer close(done)
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				log.Debug().Err(err).Msg("websocket read ended")
				return
			}
			var m rawResponse
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" {
				log.Error().Msg("invalid jsonrpc version")
				continue
			}
			if m.ID == nil || !m.ID.Equal(id) {
				continue
			}
			resp = &m
			return
		}
	}()

	if err := c.WriteJSON(req); err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}

	timer := time.NewTimer(config.APIRequestTimeout)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		closeConn(c)
		return "", ErrRequestTimeout
	case <-ctx.Done():
		closeConn(c)
		return "", ErrRequestCancelled
	}

	if resp == nil {
		return "", ErrConnectionClosed
	}
	if resp.Error != nil {
		rpcErr := &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		if resp.Error.Data != nil {
			rpcErr.Kind = resp.Error.Data.Kind
		}
		return "", rpcErr
	}
	return string(resp.Result), nil
}

type rawResponse struct {
	ID      *models.RPCID       `json:"id"`
	Error   *models.ErrorObject `json:"error"`
	JSONRPC string              `json:"jsonrpc"`
	Result  json.RawMessage     `json:"result"`
}

// Watch streams notifications from the local service to fn until fn
// returns false, ctx ends or the connection drops. Only notifications
// named in methods are delivered; none means all of them.
func Watch(
	ctx context.Context,
	cfg *config.Instance,
	fn func(models.Notification) bool,
	methods ...string,
) error {
	c, err := dial(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeConn(c)

	errCh := make(chan error, 1)
	go func() {
		for {
			_, message, err := c.ReadMessage()
			if err != nil {
				errCh <- fmt.Errorf("%w: %w", ErrConnectionClosed, err)
				return
			}
			var m models.RequestObject
			if err := json.Unmarshal(message, &m); err != nil {
				continue
			}
			if m.JSONRPC != "2.0" || m.ID != nil || m.Method == "" {
				continue
			}
			if len(methods) > 0 && !slices.Contains(methods, m.Method) {
				continue
			}
			if !fn(models.Notification{Method: m.Method, Params: m.Params}) {
				errCh <- nil
				return
			}
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		closeConn(c)
		return ErrRequestCancelled
	}
}

// WaitNotification blocks until one of the named notifications arrives and
// returns it. A zero timeout uses the request timeout and a negative one
// waits forever.
func WaitNotification(
	ctx context.Context,
	timeout time.Duration,
	cfg *config.Instance,
	methods ...string,
) (models.Notification, error) {
	switch {
	case timeout == 0:
		timeout = config.APIRequestTimeout
	case timeout < 0:
		timeout = 0
	}
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var got models.Notification
	err := Watch(waitCtx, cfg, func(n models.Notification) bool {
		got = n
		return false
	}, methods...)
	if err != nil {
		if errors.Is(err, ErrRequestCancelled) && ctx.Err() == nil {
			return models.Notification{}, ErrRequestTimeout
		}
		return models.Notification{}, err
	}
	return got, nil
}

// IsServiceRunning reports whether a service answers on the configured
// API port.
func IsServiceRunning(ctx context.Context, cfg *config.Instance) bool {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	_, err := LocalClient(ctx, cfg, models.MethodVersion, "")
	return err == nil
}

// WaitForAPI polls until the service answers or timeout passes.
func WaitForAPI(ctx context.Context, cfg *config.Instance, timeout, interval time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if IsServiceRunning(ctx, cfg) {
			return true
		}
		if time.Now().Add(interval).After(deadline) {
			return false
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(interval):
		}
	}
}

// APIClient abstracts API communication for testability.
type APIClient interface {
	// Call executes a JSON-RPC method and returns the raw result.
	Call(ctx context.Context, method, params string) (string, error)
	// Watch streams notifications until fn returns false.
	Watch(ctx context.Context, fn func(models.Notification) bool, methods ...string) error
}

// LocalAPIClient implements APIClient against the local service.
type LocalAPIClient struct {
	cfg *config.Instance
}

func NewLocalAPIClient(cfg *config.Instance) *LocalAPIClient {
	return &LocalAPIClient{cfg: cfg}
}

func (c *LocalAPIClient) Call(ctx context.Context, method, params string) (string, error) {
	resp, err := LocalClient(ctx, c.cfg, method, params)
	if err != nil {
		return "", fmt.Errorf("api call failed: %w", err)
	}
	return resp, nil
}

func (c *LocalAPIClient) Watch(ctx context.Context, fn func(models.Notification) bool, methods ...string) error {
	return Watch(ctx, c.cfg, fn, methods...)
}
