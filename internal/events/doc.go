// Package events provides the real-time notification side of the service.
//
// Task mutations are described by TaskEvent values and handed to a Publisher.
// The Registry is the in-process Publisher: it tracks the live push channels
// (Subscriber) of this process and fans each event out to a snapshot of them
// concurrently, dropping any subscriber whose send fails. RedisRelay is the
// multi-process Publisher: it publishes events to a Redis channel and feeds
// every event it receives back into the local Registry.
package events
