package chain

import (
	"fmt"

	"github.com/pkg/errors"
)

type ErrorKind int

const (
	NotInitialized ErrorKind = iota
	MissingAccount
	MissingChainConfig
	RemoteCallFailure
	MalformedResult
	OperationPanic
)

func (k ErrorKind) String() string {
	switch k {
	case NotInitialized:
		return "NotInitialized"
	case MissingAccount:
		return "MissingAccount"
	case MissingChainConfig:
		return "MissingChainConfig"
	case RemoteCallFailure:
		return "RemoteCallFailure"
	case MalformedResult:
		return "MalformedResult"
	case OperationPanic:
		return "OperationPanic"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// OrchestratorError is implemented only by *PreconditionError and *OperationalError.
// Preconditions are propagated to the caller, operational failures become a
// negative FormattedResult.
type OrchestratorError interface {
	error
	Kind() ErrorKind
	orchestratorError()
}

type PreconditionError struct {
	kind  ErrorKind
	cause error
}

func NewPreconditionError(kind ErrorKind, cause error) *PreconditionError {
	return &PreconditionError{kind: kind, cause: cause}
}

func (e *PreconditionError) Error() string      { return e.cause.Error() }
func (e *PreconditionError) Unwrap() error      { return e.cause }
func (e *PreconditionError) Kind() ErrorKind    { return e.kind }
func (e *PreconditionError) orchestratorError() {}

type OperationalError struct {
	kind  ErrorKind
	cause error
}

func NewOperationalError(kind ErrorKind, cause error) *OperationalError {
	return &OperationalError{kind: kind, cause: cause}
}

// Error is the cause's message unchanged, so a rejected remote call surfaces the
// peer's own text as the result.
func (e *OperationalError) Error() string      { return e.cause.Error() }
func (e *OperationalError) Unwrap() error      { return e.cause }
func (e *OperationalError) Kind() ErrorKind    { return e.kind }
func (e *OperationalError) orchestratorError() {}

var ErrNotInitialized = errors.New("client is not initialized")

func IsPrecondition(err error) bool {
	var pe *PreconditionError
	return errors.As(err, &pe)
}

// KindOf classifies err. Errors outside the taxonomy are treated as remote failures.
func KindOf(err error) ErrorKind {
	var oe OrchestratorError
	if errors.As(err, &oe) {
		return oe.Kind()
	}
	return RemoteCallFailure
}

func Malformed(format string, args ...any) error {
	return NewOperationalError(MalformedResult, errors.Errorf(format, args...))
}
