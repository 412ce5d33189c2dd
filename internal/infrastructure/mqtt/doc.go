// Package mqtt connects the OBEGRÄNSAD display bridge to the Gray Logic
// MQTT bus.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Publishing with payload and QoS validation
//   - Subscriptions that survive reconnects
//   - A Last Will on the bridge health topic for offline detection
//
//	Gray Logic Core ↔ MQTT Broker ↔ OBEGRÄNSAD bridge ↔ displays
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS) outside a trusted LAN
//   - Anonymous access is only for local development
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllDisplayCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        id, _ := mqtt.EntryIDFromTopic(topic)
//	        return handleCommand(id, payload)
//	    })
package mqtt
