package model

import (
	"errors"
	"fmt"
)

// ErrorKind is the closed set of failure categories a hub operation can
// surface. Every kind maps to exactly one HTTP status and one gRPC code at
// the transport boundary.
type ErrorKind string

const (
	KindNotFound              ErrorKind = "not_found"
	KindAlreadyExists         ErrorKind = "already_exists"
	KindInvalidSignature      ErrorKind = "invalid_signature"
	KindInvalidContentHash    ErrorKind = "invalid_content_hash"
	KindInvalidPublicKey      ErrorKind = "invalid_public_key"
	KindValidation            ErrorKind = "validation"
	KindResourceLimitExceeded ErrorKind = "resource_limit_exceeded"
	KindDatabase              ErrorKind = "database"
	KindSerialization         ErrorKind = "serialization"
	KindNetwork               ErrorKind = "network"
	KindUnauthorized          ErrorKind = "unauthorized"
	KindTrustPathNotFound     ErrorKind = "trust_path_not_found"
	KindFederation            ErrorKind = "federation"
	KindRateLimitExceeded     ErrorKind = "rate_limit_exceeded"
	KindInternal              ErrorKind = "internal"
)

// HubError is the error type returned by all hub services.
type HubError struct {
	Kind       ErrorKind
	EntityType string
	ID         string
	Msg        string
}

func (e *HubError) Error() string {
	switch e.Kind {
	case KindNotFound:
		return fmt.Sprintf("entity not found: %s with id %s", e.EntityType, e.ID)
	case KindAlreadyExists:
		return fmt.Sprintf("entity already exists: %s with id %s", e.EntityType, e.ID)
	case KindInvalidSignature:
		return fmt.Sprintf("invalid signature for entity: %s", e.EntityType)
	case KindTrustPathNotFound:
		return fmt.Sprintf("trust path not found from %s to %s", e.EntityType, e.ID)
	case KindRateLimitExceeded:
		return "rate limit exceeded"
	}
	if e.Msg != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return string(e.Kind)
}

// NotFound builds a KindNotFound error for an entity type and id.
func NotFound(entityType, id string) *HubError {
	return &HubError{Kind: KindNotFound, EntityType: entityType, ID: id}
}

// AlreadyExists builds a KindAlreadyExists error.
func AlreadyExists(entityType, id string) *HubError {
	return &HubError{Kind: KindAlreadyExists, EntityType: entityType, ID: id}
}

// InvalidSignature builds a KindInvalidSignature error.
func InvalidSignature(entityType string) *HubError {
	return &HubError{Kind: KindInvalidSignature, EntityType: entityType}
}

// InvalidPublicKey builds a KindInvalidPublicKey error.
func InvalidPublicKey(msg string) *HubError {
	return &HubError{Kind: KindInvalidPublicKey, Msg: msg}
}

// Validation builds a KindValidation error.
func Validation(msg string) *HubError {
	return &HubError{Kind: KindValidation, Msg: msg}
}

// ResourceLimitExceeded builds a KindResourceLimitExceeded error.
func ResourceLimitExceeded(msg string) *HubError {
	return &HubError{Kind: KindResourceLimitExceeded, Msg: msg}
}

// DatabaseError builds a KindDatabase error.
func DatabaseError(msg string) *HubError {
	return &HubError{Kind: KindDatabase, Msg: msg}
}

// SerializationError builds a KindSerialization error.
func SerializationError(msg string) *HubError {
	return &HubError{Kind: KindSerialization, Msg: msg}
}

// NetworkError builds a KindNetwork error.
func NetworkError(msg string) *HubError {
	return &HubError{Kind: KindNetwork, Msg: msg}
}

// TrustPathNotFound builds a KindTrustPathNotFound error. The from/to
// addresses ride in the EntityType/ID slots for message formatting.
func TrustPathNotFound(from, to string) *HubError {
	return &HubError{Kind: KindTrustPathNotFound, EntityType: from, ID: to}
}

// FederationError builds a KindFederation error.
func FederationError(msg string) *HubError {
	return &HubError{Kind: KindFederation, Msg: msg}
}

// Internal builds a KindInternal error.
func Internal(msg string) *HubError {
	return &HubError{Kind: KindInternal, Msg: msg}
}

// KindOf extracts the ErrorKind from err, or KindInternal for foreign errors.
func KindOf(err error) ErrorKind {
	var he *HubError
	if errors.As(err, &he) {
		return he.Kind
	}
	return KindInternal
}

// IsNotFound reports whether err carries KindNotFound.
func IsNotFound(err error) bool { return KindOf(err) == KindNotFound }
