// Package mqtt connects HireHub Core to an MQTT broker.
//
// The broker is optional. When enabled, Core publishes every session
// state transition as a retained message so other services (mailers,
// analytics, the admin console) can follow logins and logouts without
// polling the API, and it listens for logout commands addressed to a
// session.
//
// # Topics
//
//	hirehub/session/{id}/state     retained JSON state, published by Core
//	hirehub/session/{id}/command   {"action":"logout"}, consumed by Core
//	hirehub/system/status          online/offline, with an LWT for crashes
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.PublishRetained(mqtt.Topics{}.SessionState(id), payload)
//
// Handlers run on paho's goroutines and are wrapped with panic recovery.
// Subscriptions are restored after a reconnect.
package mqtt
