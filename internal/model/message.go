package model

// Log types distinguish which stream produced a line.
const (
	LogTypeStdout = 1
	LogTypeStderr = 2
)

// Origin describes where a message entered the system.
type Origin struct {
	// Port is the local port the producer wrote to, if any.
	Port string `json:"port,omitempty"`
	// File is the followed file path, if any.
	File string `json:"file,omitempty"`
	// APISource identifies messages pushed through the API.
	APISource string `json:"api_source,omitempty"`
}

// TimingStyle holds presentation hints for a trace block.
type TimingStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty"`
	Border          string `json:"border,omitempty"`
	Color           string `json:"color,omitempty"`
}

// Timing describes the span of the event a log line represents.
// Values are positive numbers with no defined unit. When End is present
// Duration is ignored.
type Timing struct {
	Start    int64        `json:"start"`
	End      int64        `json:"end,omitempty"`
	Duration int64        `json:"duration,omitempty"`
	Label    string       `json:"label,omitempty"`
	Style    *TimingStyle `json:"style,omitempty"`
}

// Message is a single log event as delivered by the transport.
// It is immutable after ingestion except for middleware mutation
// while the middleware chain runs.
type Message struct {
	ID      string `json:"id"`
	LogType int    `json:"log_type"`
	// Content is the raw log line.
	Content string `json:"content"`
	// JSONContent holds the parsed value when Content is JSON.
	JSONContent any  `json:"json_content,omitempty"`
	IsJSON      bool `json:"is_json"`
	// Ts is a UNIX timestamp in milliseconds of when the message was received.
	Ts int64 `json:"ts"`
	// OrderKey, when set, overrides arrival order for display ordering.
	OrderKey int64   `json:"order_key,omitempty"`
	Origin   *Origin `json:"origin,omitempty"`
	// Style is applied to the entire table row, e.g. {"background": "red"}.
	Style         map[string]any `json:"style,omitempty"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	Timing        *Timing        `json:"timing,omitempty"`
}
