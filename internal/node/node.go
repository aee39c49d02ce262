package node

import (
	"context"
	"log/slog"

	"github.com/rvs/workflow-nodes/internal/model"
)

// PropertyType is the kind of value a node parameter holds.
type PropertyType string

const (
	PropertyString     PropertyType = "string"
	PropertyNumber     PropertyType = "number"
	PropertyBoolean    PropertyType = "boolean"
	PropertyOptions    PropertyType = "options"
	PropertyCollection PropertyType = "collection"
)

// PropertyOption is one selectable value of an options property.
type PropertyOption struct {
	Name        string `json:"name"`
	Value       any    `json:"value"`
	Description string `json:"description,omitempty"`
}

// DisplayOptions restricts when a property is shown: every key names a
// sibling parameter and lists the values for which it is visible.
type DisplayOptions struct {
	Show map[string][]any `json:"show,omitempty"`
}

// Property describes a single node parameter for the host UI.
type Property struct {
	DisplayName    string           `json:"displayName"`
	Name           string           `json:"name"`
	Type           PropertyType     `json:"type"`
	Default        any              `json:"default"`
	Required       bool             `json:"required,omitempty"`
	Placeholder    string           `json:"placeholder,omitempty"`
	Description    string           `json:"description,omitempty"`
	Options        []PropertyOption `json:"options,omitempty"`
	Collection     []Property       `json:"collection,omitempty"`
	DisplayOptions *DisplayOptions  `json:"displayOptions,omitempty"`
}

// CredentialRef declares a credential type a node needs.
type CredentialRef struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
}

// Description is the declarative schema of a node type.
type Description struct {
	DisplayName string          `json:"displayName"`
	Name        string          `json:"name"`
	Version     int             `json:"version"`
	Description string          `json:"description"`
	Credentials []CredentialRef `json:"credentials,omitempty"`
	Properties  []Property      `json:"properties"`
}

// ExecuteContext is the host capability handed to a node for one run.
type ExecuteContext interface {
	// InputData returns the items the node receives.
	InputData() []model.Item

	// Params returns the parameter values resolved for the given item.
	Params(index int) Params

	// Credentials resolves the credential set of the given type for an item.
	Credentials(ctx context.Context, credentialType string, index int) (Credentials, error)

	// PrepareBinaryData wraps raw bytes into a binary handle. An empty
	// mimeType is detected from the content.
	PrepareBinaryData(data []byte, fileName, mimeType string) model.BinaryData

	// ContinueOnFail reports whether item failures should be recorded as
	// error items instead of aborting the run.
	ContinueOnFail() bool

	// StaticData is a per-node map persisted across runs.
	StaticData() map[string]any

	Logger() *slog.Logger
}

// Node is the contract every workflow node implements.
type Node interface {
	// Description returns the node's declarative schema.
	Description() Description

	// Execute runs the node once. The outer slice is the list of output
	// channels.
	Execute(ctx context.Context, ec ExecuteContext) ([][]model.Item, error)
}

// CredentialStatus is the outcome of a credential test.
type CredentialStatus string

const (
	CredentialOK    CredentialStatus = "OK"
	CredentialError CredentialStatus = "Error"
)

// CredentialTestResult reports a credential test as a status and message.
type CredentialTestResult struct {
	Status  CredentialStatus `json:"status"`
	Message string           `json:"message"`
}

// CredentialTester is implemented by nodes that can verify a credential
// set against the remote service.
type CredentialTester interface {
	TestCredential(ctx context.Context, creds Credentials) CredentialTestResult
}

// ConnectionSuccessful is the message reported by a passing credential test.
const ConnectionSuccessful = "Connection successful!"

// CredentialFailed builds a failing credential test result.
func CredentialFailed(err error) CredentialTestResult {
	return CredentialTestResult{Status: CredentialError, Message: err.Error()}
}

// CredentialPassed builds a passing credential test result.
func CredentialPassed() CredentialTestResult {
	return CredentialTestResult{Status: CredentialOK, Message: ConnectionSuccessful}
}

// ErrorItem converts an item failure into an output item recording it.
func ErrorItem(err error, index int) model.Item {
	return model.NewItem(map[string]any{"error": err.Error()}, index)
}
