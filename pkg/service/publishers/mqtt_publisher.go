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


package publishers

import (
	"fmt"
	"slices"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

const (
	clientIDPrefix    = "motolink-publisher-"
	connectTimeout    = 10 * time.Second
	disconnectQuiesce = 250
)

// MQTTPublisher forwards service notifications to an MQTT broker. Each
// notification is published to a subtopic of the configured topic derived
// from its method, e.g. "motolink/readings/new".
type MQTTPublisher struct {
	client    mqtt.Client
	newClient func(*mqtt.ClientOptions) mqtt.Client
	stopCh    chan struct{}
	doneCh    chan struct{}
	broker    string
	topic     string
	filter    []string
}

// NewMQTTPublisher creates a publisher for the given broker and topic. If
// filter is empty every notification is published, otherwise only the
// listed methods are.
func NewMQTTPublisher(broker, topic string, filter []string) *MQTTPublisher {
	return &MQTTPublisher{
		broker:    broker,
		topic:     strings.TrimSuffix(topic, "/"),
		filter:    filter,
		newClient: mqtt.NewClient,
		stopCh:    make(chan struct{}),
		doneCh:    make(chan struct{}),
	}
}

func (p *MQTTPublisher) clientOptions() *mqtt.ClientOptions {
	opts := mqtt.NewClientOptions()
	opts.AddBroker("tcp://" + p.broker)
	opts.SetClientID(clientIDPrefix + uuid.New().String()[:8])
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(connectTimeout)
	opts.OnConnect = func(_ mqtt.Client) {
		log.Info().Msgf("mqtt publisher: connected to %s", p.broker)
	}
	opts.OnConnectionLost = func(_ mqtt.Client, err error) {
		log.Warn().Err(err).Msg("mqtt publisher: connection lost")
	}
	return opts
}

// Start connects to the broker and begins publishing notifications until
// Stop is called or the channel is closed.
func (p *MQTTPublisher) Start(notifications <-chan models.Notification) error {
	p.client = p.newClient(p.clientOptions())

	token := p.client.Connect()
	if token.Wait() && token.Error() != nil {
		close(p.doneCh)
		return fmt.Errorf("failed to connect to MQTT broker %s: %w", p.broker, token.Error())
	}

	log.Info().Msgf("mqtt publisher: publishing to %s (topic: %s)", p.broker, p.topic)
	go p.publishNotifications(notifications)
	return nil
}

// Stop ends the publish loop and disconnects from the broker.
func (p *MQTTPublisher) Stop() {
	select {
	case <-p.stopCh:
		return
	default:
		close(p.stopCh)
	}
	if p.client == nil {
		return
	}
	<-p.doneCh

	if p.client.IsConnected() {
		log.Debug().Msg("mqtt publisher: disconnecting")
		p.client.Disconnect(disconnectQuiesce)
	}
}

func (p *MQTTPublisher) publishNotifications(notifications <-chan models.Notification) {
	defer close(p.doneCh)

	for {
		select {
		case <-p.stopCh:
			log.Debug().Msg("mqtt publisher: stopping")
			return
		case notif, ok := <-notifications:
			if !ok {
				log.Debug().Msg("mqtt publisher: notification channel closed")
				return
			}
			if !p.matchesFilter(notif.Method) {
				continue
			}
			p.publish(notif)
		}
	}
}

// publish sends the notification params, without the JSON-RPC envelope.
// Session changes are retained so new subscribers see the current state.
func (p *MQTTPublisher) publish(notif models.Notification) {
	payload := []byte(notif.Params)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	retained := notif.Method == models.NotificationSessionChanged

	token := p.client.Publish(p.methodTopic(notif.Method), 0, retained, payload)
	if token.Wait() && token.Error() != nil {
		log.Error().Err(token.Error()).Msgf("mqtt publisher: failed to publish %s", notif.Method)
		return
	}
	log.Trace().Msgf("mqtt publisher: published %s", notif.Method)
}

func (p *MQTTPublisher) methodTopic(method string) string {
	return p.topic + "/" + strings.ReplaceAll(method, ".", "/")
}

func (p *MQTTPublisher) matchesFilter(method string) bool {
	return len(p.filter) == 0 || slices.Contains(p.filter, method)
}
