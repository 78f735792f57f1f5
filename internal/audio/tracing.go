package audio

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/zjrosen/chime/internal/audio"

// Span attribute keys.
const (
	attrURL     = attribute.Key("audio.url")
	attrCommand = attribute.Key("audio.command")
	attrSource  = attribute.Key("audio.source")
	attrOutcome = attribute.Key("audio.outcome")
)

func tracer() trace.Tracer {
	return otel.Tracer(tracerName)
}
