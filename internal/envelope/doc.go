// Package envelope defines the wire units exchanged over the notification channel.
//
// Every frame is a JSON object with a "type" discriminator and a "timestamp".
// Inbound frames are parsed into an Envelope; recognized types can be decoded
// further into their typed payloads. Business fields (cost figures, waste items,
// recommendations) are carried as opaque JSON and never interpreted here.
package envelope
