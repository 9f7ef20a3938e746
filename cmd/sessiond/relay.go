package main

import (
	"context"
	"encoding/json"
	"log"

	"github.com/hyperstream/sessiond/internal/hub"
	"github.com/hyperstream/sessiond/internal/transport/local"
	"github.com/hyperstream/sessiond/internal/transport/relay"
)

// runRelay starts the Relay Transport: one host-side connection to the first
// reachable configured rendezvous URL (the rest are fallbacks, tried in
// order), exchanging encrypted application frames with
// a single remote subscriber over the same Fan-out Hub the Local Transport
// uses, so a subscriber can observe and drive sessions "from anywhere...
// without any inbound port on the host" (spec §1, §4.H). It's a no-op
// when no rendezvous is configured.
func (d *daemon) runRelay() {
	if len(d.cfg.RelayURLs) == 0 {
		return
	}

	key, err := relay.GenerateKey()
	if err != nil {
		log.Printf("sessiond: relay disabled, key generation failed: %v", err)
		return
	}
	host := &relay.HostConn{URLs: d.cfg.RelayURLs, Key: key}

	sub, err := d.h.Connect("relay", "relay")
	if err != nil {
		log.Printf("sessiond: relay disabled, hub admission failed: %v", err)
		return
	}
	defer d.h.Disconnect(sub)

	ctx := context.Background()
	go d.relayWritePump(ctx, host, sub)

	host.RunWithReconnect(ctx, func(data []byte) {
		var msg local.ClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return
		}
		d.dispatch(sub, msg)
	}, func(cf relay.ControlFrame) {
		log.Printf("sessiond: relay control frame: %s", cf.Type)
	}, func(code string) {
		log.Printf("sessiond: relay room code %s", code)
	})
}

// relayWritePump drains sub's mailbox and forwards every OutboundMessage
// to the relay host connection, encrypted, mirroring the Local Transport's
// WritePump.
func (d *daemon) relayWritePump(ctx context.Context, host *relay.HostConn, sub *hub.Subscriber) {
	for {
		select {
		case msg, ok := <-sub.Mailbox():
			if !ok {
				return
			}
			payload, err := json.Marshal(local.ToServerMessage(msg))
			if err != nil {
				continue
			}
			if err := host.SendEncrypted(ctx, payload); err != nil {
				return
			}
		case <-sub.Closed():
			return
		case <-ctx.Done():
			return
		}
	}
}
