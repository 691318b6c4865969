package logging

import (
	"encoding/json"
	"time"

	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

var scalyrPool = buffer.NewPool()

// ScalyrEncoder writes one flat JSON object per entry, the shape Scalyr parses
// without a custom parser: entry metadata and fields share the top level.
// Fields added through logger.With accumulate in the embedded map encoder.
type ScalyrEncoder struct {
	*zapcore.MapObjectEncoder
	config zapcore.EncoderConfig
}

// NewScalyrEncoder creates a new Scalyr-compatible encoder
func NewScalyrEncoder(config zapcore.EncoderConfig) zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: zapcore.NewMapObjectEncoder(),
		config:           config,
	}
}

// EncodeEntry encodes a log entry in Scalyr-compatible format
func (e *ScalyrEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	collected := e.cloneFields()
	for _, field := range fields {
		field.AddTo(collected)
	}

	out := make(map[string]interface{}, len(collected.Fields)+7)
	for k, v := range collected.Fields {
		switch val := v.(type) {
		case time.Duration:
			out[k] = val.String()
		case time.Time:
			out[k] = val.Format(time.RFC3339Nano)
		default:
			out[k] = val
		}
	}

	out["timestamp"] = entry.Time.Format(time.RFC3339Nano)
	out["level"] = entry.Level.String()
	out["message"] = entry.Message
	if entry.LoggerName != "" {
		out["logger"] = entry.LoggerName
	}
	if entry.Caller.Defined {
		out["file"] = entry.Caller.File
		out["line"] = entry.Caller.Line
		out["function"] = entry.Caller.Function
	}
	if entry.Stack != "" {
		out["stack"] = entry.Stack
	}

	data, err := json.Marshal(out)
	if err != nil {
		return nil, err
	}
	buf := scalyrPool.Get()
	buf.AppendBytes(data)
	buf.AppendString(e.lineEnding())
	return buf, nil
}

// Clone creates a copy of the encoder
func (e *ScalyrEncoder) Clone() zapcore.Encoder {
	return &ScalyrEncoder{
		MapObjectEncoder: e.cloneFields(),
		config:           e.config,
	}
}

func (e *ScalyrEncoder) cloneFields() *zapcore.MapObjectEncoder {
	clone := zapcore.NewMapObjectEncoder()
	for k, v := range e.Fields {
		clone.Fields[k] = v
	}
	return clone
}

func (e *ScalyrEncoder) lineEnding() string {
	if e.config.LineEnding != "" {
		return e.config.LineEnding
	}
	return zapcore.DefaultLineEnding
}
