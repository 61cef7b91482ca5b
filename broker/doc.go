// Package broker defines the narrow message-broker contract the service
// lifecycle depends on: connect, publish, subscribe, close. Delivery is
// at-most-once and best-effort; ordering and durability are the broker's
// own responsibility, not meshkit's.
//
// Two implementations ship with meshkit: a Kafka adapter built on
// kafka-go and an in-memory broker for tests and local development.
package broker
