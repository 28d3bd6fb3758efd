// Copyright © 2026 Jonathan Whitaker <github@whitaker.io>.
//
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package sentrytx

// BufferLimitAction selects what the filter does when a buffered body
// crosses its configured limit: ActionFlushAll flushes everything
// collected so far before accepting the chunk that would cross the limit,
// and ActionFlushPart flushes only the overflow, leaving the limit's worth
// of bytes buffered. Both keep buffering afterwards.
type BufferLimitAction int

const (
	ActionFlushAll BufferLimitAction = iota
	ActionFlushPart
)

// Config is the engine-wide, per-direction core configuration. It is
// read-mostly after Engine construction, the
// same way the operator and action registries are.
type Config struct {
	// BufferRequest/BufferResponse enable body buffering for their
	// direction; when false, the filter mode is always nobuf regardless
	// of limits.
	BufferRequest  bool `mapstructure:"buffer_request"`
	BufferResponse bool `mapstructure:"buffer_response"`

	// RequestBodyBufferLimit/ResponseBodyBufferLimit cap how many bytes
	// the filter buffers before applying BufferLimitAction. A negative
	// value means unlimited, which forces buffer_all.
	RequestBodyBufferLimit  int64 `mapstructure:"request_body_buffer_limit"`
	ResponseBodyBufferLimit int64 `mapstructure:"response_body_buffer_limit"`

	RequestBodyBufferLimitAction  BufferLimitAction `mapstructure:"request_body_buffer_limit_action"`
	ResponseBodyBufferLimitAction BufferLimitAction `mapstructure:"response_body_buffer_limit_action"`

	// InspectRequestHeader, ... mirror the TxFlags inspect_* bits at
	// configuration time; NewTX seeds the TX's flags from these so a
	// host doesn't have to set each flag by hand on every transaction.
	InspectRequestHeader  bool `mapstructure:"inspect_request_header"`
	InspectRequestBody    bool `mapstructure:"inspect_request_body"`
	InspectResponseHeader bool `mapstructure:"inspect_response_header"`
	InspectResponseBody   bool `mapstructure:"inspect_response_body"`
}

// DefaultConfig returns a Config with inspection and buffering on and no
// buffer limit, matching an intermediary that inspects everything until
// told otherwise.
func DefaultConfig() Config {
	return Config{
		BufferRequest:           true,
		BufferResponse:          true,
		RequestBodyBufferLimit:  -1,
		ResponseBodyBufferLimit: -1,
		InspectRequestHeader:    true,
		InspectRequestBody:      true,
		InspectResponseHeader:   true,
		InspectResponseBody:     true,
	}
}
