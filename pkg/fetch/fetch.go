// Package fetch provides property sources that enrich the properties
// extracted by a rule.
//
// [HTTP] queries a JSON endpoint and turns the returned list into property
// maps. [Static] returns maps declared in configuration.
package fetch

import (
	"errors"

	"go.opentelemetry.io/otel"
)

var (
	// ErrStatus is returned when an endpoint responds with a non-2xx status.
	ErrStatus = errors.New("unexpected response status")
	// ErrDecode is returned when a response is not valid JSON, or the
	// selected value cannot be converted to property maps.
	ErrDecode = errors.New("decode response")
	// ErrRequest is returned when a request cannot be sent.
	ErrRequest = errors.New("send request")
)

var tracer = otel.Tracer("github.com/macropower/resc/pkg/fetch")
