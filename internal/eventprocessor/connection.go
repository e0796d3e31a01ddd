// Stellr - Realtime Messaging and Monitoring Core
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stellr

package eventprocessor

import (
	"time"

	"github.com/ThreeDotsLabs/watermill"
	natsgo "github.com/nats-io/nats.go"
)

// connOptions are the connection settings shared by both sides of the
// change feed. role names the side in connection names and log lines.
type connOptions struct {
	role          string
	maxReconnects int
	reconnectWait time.Duration
	reconnectBuf  int // 0 keeps the nats.go default
}

func (o connOptions) natsOptions(logger watermill.LoggerAdapter) []natsgo.Option {
	fields := watermill.LogFields{"role": o.role}
	opts := []natsgo.Option{
		natsgo.Name(brokerName + "-" + o.role),
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(o.maxReconnects),
		natsgo.ReconnectWait(o.reconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logger.Error("change feed connection lost", err, fields)
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logger.Info("change feed connection restored", fields.Add(watermill.LogFields{
				"url": nc.ConnectedUrl(),
			}))
		}),
	}
	if o.reconnectBuf > 0 {
		opts = append(opts, natsgo.ReconnectBufSize(o.reconnectBuf))
	}
	return opts
}
