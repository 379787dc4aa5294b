// Package transport delivers bus messages to the router.
//
// Bus client libraries invoke their callbacks on their own goroutines. Every
// adapter in this package pushes what it receives into a bounded Queue, and
// consumers pull from it with Subscription.Next using a bounded wait. The
// queue is the only point where goroutines meet; everything downstream of it
// runs on the consumer's goroutine.
//
// Adapters:
//
//   - MQTT (paho): subscribes to "<root>/#".
//   - NATS: subscribes to "<root>.>" and maps subjects to slash topics.
//   - Redis pub/sub: pattern-subscribes to "<root>/*".
//
// Payloads are decoded as JSON when possible and passed on as the raw string
// otherwise; validation is the router's job.
package transport
