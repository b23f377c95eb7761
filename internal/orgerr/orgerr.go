// Package orgerr defines the tagged error taxonomy shared across the
// runtime. Every component boundary (connector call, transform
// execution, delivery, module lifecycle) wraps failures in an *Error
// so callers can classify and log them without string matching.
package orgerr

import (
	"errors"
	"fmt"
)

// Kind tags the category of a failure.
type Kind string

const (
	KindConfig     Kind = "CONFIG_ERROR"
	KindConnector  Kind = "CONNECTOR_ERROR"
	KindTransform  Kind = "TRANSFORM_ERROR"
	KindDelivery   Kind = "DELIVERY_ERROR"
	KindSchema     Kind = "SCHEMA_ERROR"
	KindModuleConf Kind = "MODULE_CONFLICT"
	KindModuleNF   Kind = "MODULE_NOT_FOUND"
	KindRuntime    Kind = "RUNTIME_ERROR"
)

// Error is the tagged-variant error used throughout orgloop. Fields not
// relevant to a given Kind are left zero.
type Error struct {
	Kind           Kind
	Message        string
	ConnectorID    string
	TransformID    string
	ActorID        string
	RouteName      string
	ModuleName     string
	ValidationErrs []string
	Cause          error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Kind, e.Message)
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target is an *Error of the same Kind, so
// errors.Is(err, &Error{Kind: KindX}) matches any error of kind KindX;
// callers more commonly use KindOf below.
func (e *Error) Is(target error) bool {
	var other *Error
	if errors.As(target, &other) {
		return e.Kind == other.Kind
	}
	return false
}

func newErr(kind Kind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Cause: cause}
}

// Config builds a CONFIG_ERROR.
func Config(msg string, cause error) *Error { return newErr(KindConfig, msg, cause) }

// Connector builds a CONNECTOR_ERROR carrying the connector id.
func Connector(connectorID, msg string, cause error) *Error {
	e := newErr(KindConnector, msg, cause)
	e.ConnectorID = connectorID
	return e
}

// Transform builds a TRANSFORM_ERROR carrying the transform id.
func Transform(transformID, msg string, cause error) *Error {
	e := newErr(KindTransform, msg, cause)
	e.TransformID = transformID
	return e
}

// Delivery builds a DELIVERY_ERROR carrying actor id and route name.
func Delivery(actorID, routeName, msg string, cause error) *Error {
	e := newErr(KindDelivery, msg, cause)
	e.ActorID = actorID
	e.RouteName = routeName
	return e
}

// Schema builds a SCHEMA_ERROR carrying validation errors.
func Schema(msg string, validationErrs []string) *Error {
	e := newErr(KindSchema, msg, nil)
	e.ValidationErrs = validationErrs
	return e
}

// ModuleConflict builds a MODULE_CONFLICT error.
func ModuleConflict(moduleName string) *Error {
	e := newErr(KindModuleConf, fmt.Sprintf("module %q already registered", moduleName), nil)
	e.ModuleName = moduleName
	return e
}

// ModuleNotFound builds a MODULE_NOT_FOUND error.
func ModuleNotFound(moduleName string) *Error {
	e := newErr(KindModuleNF, fmt.Sprintf("module %q not found", moduleName), nil)
	e.ModuleName = moduleName
	return e
}

// Runtime builds a catch-all RUNTIME_ERROR.
func Runtime(msg string, cause error) *Error { return newErr(KindRuntime, msg, cause) }

// KindOf returns the Kind of err if it is (or wraps) an *Error, and ok=false
// otherwise.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
