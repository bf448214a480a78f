// Package notifications delivers pipeline events via pluggable notifiers.
//
// The default implementation publishes to ntfy using the topic configured in
// config.toml and gracefully degrades to a no-op when no topic is set.
// Progress events are rate limited so a long transcode cannot flood the
// topic; completion and failure events always go out when their category is
// enabled.
//
// Extend this package if you need alternative transports; pipeline code
// depends only on the Service interface.
package notifications
