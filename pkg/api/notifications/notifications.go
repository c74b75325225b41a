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


// Package notifications builds and queues the JSON-RPC notifications the
// service pushes to API clients and publishers.
package notifications

import (
	"encoding/json"

	"github.com/motolink/motolink-core/pkg/api/models"
	"github.com/rs/zerolog/log"
)

// sendNotification queues a notification without blocking. Callers include
// the session supervisor's goroutine, which must never stall on a slow
// consumer, so a full channel drops the notification.
func sendNotification(ns chan<- models.Notification, method string, payload any) {
	var params json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			log.Error().Err(err).Str("method", method).Msg("marshalling notification params")
			return
		}
		params = data
	}

	select {
	case ns <- models.Notification{Method: method, Params: params}:
	default:
		log.Warn().Str("method", method).Msg("notification channel full, dropping notification")
	}
}

func ReadingsNew(ns chan<- models.Notification, payload models.ReadingResponse) {
	sendNotification(ns, models.NotificationReadingsNew, payload)
}

func MessagesNew(ns chan<- models.Notification, payload models.MessageResponse) {
	sendNotification(ns, models.NotificationMessagesNew, payload)
}

func SessionChanged(ns chan<- models.Notification, payload models.SessionResponse) {
	sendNotification(ns, models.NotificationSessionChanged, payload)
}

func SessionError(ns chan<- models.Notification, payload models.ErrorResponse) {
	sendNotification(ns, models.NotificationSessionError, payload)
}

func DataLogChanged(ns chan<- models.Notification, payload models.DataLogResponse) {
	sendNotification(ns, models.NotificationDataLogChanged, payload)
}
