package node

import (
	"errors"
	"fmt"
)

// NoItem is the item index of failures not attributable to a single item.
const NoItem = -1

// ItemError is implemented by errors that can be attributed to the input
// item whose processing failed.
type ItemError interface {
	error
	Item() int
}

// ItemIndexOf returns the item index attached to err, if any.
func ItemIndexOf(err error) (int, bool) {
	var ie ItemError
	if errors.As(err, &ie) && ie.Item() != NoItem {
		return ie.Item(), true
	}
	return NoItem, false
}

func itemPrefix(index int) string {
	if index == NoItem {
		return ""
	}
	return fmt.Sprintf("item %d: ", index)
}

// ConfigurationError indicates invalid user-supplied configuration.
// It is never retried.
type ConfigurationError struct {
	ItemIndex int
	Message   string
	// Value is the offending configuration value, if any.
	Value string
	Err   error
}

func (e *ConfigurationError) Error() string {
	msg := itemPrefix(e.ItemIndex) + e.Message
	if e.Value != "" {
		msg += fmt.Sprintf(" (value: %s)", e.Value)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }
func (e *ConfigurationError) Item() int     { return e.ItemIndex }

// IsConfigurationError reports whether err (or any error in its chain) is
// a ConfigurationError.
func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// ConnectionError indicates an authentication or network failure while
// acquiring a session.
type ConnectionError struct {
	ItemIndex int
	User      string
	Host      string
	Err       error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf(
		"%sconnection issue for user %s and server %s: %v",
		itemPrefix(e.ItemIndex), e.User, e.Host, e.Err,
	)
}

func (e *ConnectionError) Unwrap() error { return e.Err }
func (e *ConnectionError) Item() int     { return e.ItemIndex }

// IsConnectionError reports whether err (or any error in its chain) is a
// ConnectionError.
func IsConnectionError(err error) bool {
	var target *ConnectionError
	return errors.As(err, &target)
}

// SearchError indicates that a search request was rejected or failed.
type SearchError struct {
	ItemIndex int
	Criteria  string
	Err       error
}

func (e *SearchError) Error() string {
	return fmt.Sprintf(
		"%scan't perform search operation with search criteria %s: %v",
		itemPrefix(e.ItemIndex), e.Criteria, e.Err,
	)
}

func (e *SearchError) Unwrap() error { return e.Err }
func (e *SearchError) Item() int     { return e.ItemIndex }

// IsSearchError reports whether err (or any error in its chain) is a
// SearchError.
func IsSearchError(err error) bool {
	var target *SearchError
	return errors.As(err, &target)
}

// MalformedMessageError indicates that an expected message part is absent.
type MalformedMessageError struct {
	ItemIndex int
	UID       uint32
	Part      string
}

func (e *MalformedMessageError) Error() string {
	part := e.Part
	if part == "" {
		part = "full message"
	}
	return fmt.Sprintf(
		"%semail part could not be parsed: message UID %d has no %s part",
		itemPrefix(e.ItemIndex), e.UID, part,
	)
}

func (e *MalformedMessageError) Item() int { return e.ItemIndex }

// IsMalformedMessageError reports whether err (or any error in its chain)
// is a MalformedMessageError.
func IsMalformedMessageError(err error) bool {
	var target *MalformedMessageError
	return errors.As(err, &target)
}

// OperationError is a generic node failure, optionally scoped to an item.
type OperationError struct {
	ItemIndex int
	Message   string
	Err       error
}

func (e *OperationError) Error() string {
	msg := itemPrefix(e.ItemIndex) + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *OperationError) Unwrap() error { return e.Err }
func (e *OperationError) Item() int     { return e.ItemIndex }
