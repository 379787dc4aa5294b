// Package snapshot defines the timestamped device state record published on
// the bus and its typed, validated wire decoding.
//
// # Wire Format
//
// A state message body is a JSON object:
//
//	{
//	  "timestamp": "2025-11-21T21:21:02.043948229+02:00",
//	  "name": "io-kitchen",
//	  "status": "ok",
//	  "digitalOutputs": "AQA=",
//	  "digitalInputs": "gA==",
//	  "errors": ["coil read timeout"]
//	}
//
// timestamp, name and status are required. Buffer fields are base64; absent,
// null or empty buffers decode to nil ("no data"), which is distinct from a
// zero-valued buffer. Timestamps are truncated to microsecond precision.
//
// # Errors
//
// Decode failures wrap ErrMalformedSnapshot or ErrMalformedTimestamp in a
// *DecodeError naming the offending field:
//
//	snap, err := snapshot.Decode(payload)
//	if errors.Is(err, snapshot.ErrMalformedTimestamp) {
//	    // producer clock format changed
//	}
package snapshot
