/*
Package events provides the in-process notification bus between envgate
components.

The config store publishes one event per successful commit and the agent
roster one per registration, heartbeat or deletion. The reconciler
subscribes and rebuilds the membership index when it receives them.

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	sub := broker.Subscribe()
	defer broker.Unsubscribe(sub)

	broker.Publish(events.NewEvent(events.EventEnvironmentCreated, "Added environment 'uat'.",
		map[string]string{events.MetaEnvironment: "uat"}))

	ev := <-sub.C

# Delivery

A single loop drains the publish queue, so every subscriber sees events in
publish order. Delivery to a subscriber blocks until its buffer has room;
events are never dropped for an active subscription. Unsubscribe abandons
pending deliveries to that subscription only. Publish blocks when the
publish queue is full and returns immediately once the broker is stopped.
*/
package events
