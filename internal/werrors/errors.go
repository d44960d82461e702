// Package werrors defines the workflow error taxonomy. Every error that
// can terminate a node or workflow attempt implements StatusError, which
// pins it to exactly one status.Code so the scheduler never has to guess
// how to classify a failure.
package werrors

import (
	"errors"
	"fmt"

	"github.com/ShaharBand/fluxly/internal/status"
)

// StatusError is an error that carries its own terminal status code.
type StatusError interface {
	error
	Status() status.Code
	// Class names the error the way the run-record's exception_class_name
	// field reports it, e.g. "TimeoutException".
	Class() string
}

// className is the exception-class name recorded for each status code,
// matching the Python taxonomy's per-exception class names.
var className = map[status.Code]string{
	status.TimedOut:              "TimeoutException",
	status.InfrastructureError:   "InfrastructureException",
	status.DataError:             "DataException",
	status.PrerequisiteFail:      "PrerequisiteFailException",
	status.APICallFailure:        "APICallException",
	status.NetworkFailure:        "NetworkException",
	status.DataValidationFailure: "DataValidationException",
	status.DependencyUnavailable: "DependencyUnavailableException",
}

type statusError struct {
	code status.Code
	msg  string
	err  error
}

func (e *statusError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s", e.msg, e.err)
	}
	return e.msg
}

func (e *statusError) Unwrap() error { return e.err }

func (e *statusError) Status() status.Code { return e.code }

func (e *statusError) Class() string {
	if name, ok := className[e.code]; ok {
		return name
	}
	return "WorkflowException"
}

func newErr(code status.Code, msg string, cause error) *statusError {
	return &statusError{code: code, msg: msg, err: cause}
}

// Timeout marks an attempt abandoned because it exceeded its deadline.
func Timeout(msg string) StatusError {
	return newErr(status.TimedOut, msg, nil)
}

// Infrastructure wraps a failure in infrastructure the workflow depends on
// (databases, queues, filesystems) that is not itself the workflow's fault.
func Infrastructure(msg string, cause error) StatusError {
	return newErr(status.InfrastructureError, msg, cause)
}

// Data wraps a failure caused by malformed or unexpected data encountered
// mid-execution, distinct from input validation at submission time.
func Data(msg string, cause error) StatusError {
	return newErr(status.DataError, msg, cause)
}

// PrerequisiteFail marks a structural problem with the workflow definition
// itself (empty graph, unsupported scheduling scenario) discovered before
// or during scheduling, not a single node's runtime failure.
func PrerequisiteFail(msg string) StatusError {
	return newErr(status.PrerequisiteFail, msg, nil)
}

// APICallFailure wraps a failed call to an external HTTP/RPC API.
func APICallFailure(msg string, cause error) StatusError {
	return newErr(status.APICallFailure, msg, cause)
}

// NetworkFailure wraps a transport-level failure (DNS, connection refused,
// dropped connection) distinct from a well-formed but unsuccessful API call.
func NetworkFailure(msg string, cause error) StatusError {
	return newErr(status.NetworkFailure, msg, cause)
}

// DataValidationFailure marks input that failed semantic validation.
func DataValidationFailure(msg string, cause error) StatusError {
	return newErr(status.DataValidationFailure, msg, cause)
}

// DependencyUnavailable marks a required collaborator (client, service,
// resource) that could not be reached or was not configured.
func DependencyUnavailable(msg string, cause error) StatusError {
	return newErr(status.DependencyUnavailable, msg, cause)
}

// Classify maps any error to a status.Code. StatusError values report
// their own code; anything else falls back to status.Failed, the
// catch-all for errors that don't originate from this package.
func Classify(err error) status.Code {
	if err == nil {
		return status.Completed
	}
	var se StatusError
	if errors.As(err, &se) {
		return se.Status()
	}
	return status.Failed
}

// ClassName reports the exception-class name a run record should carry
// for err: a StatusError reports its own Class(), anything else falls
// back to its Go type name.
func ClassName(err error) string {
	var se StatusError
	if errors.As(err, &se) {
		return se.Class()
	}
	return fmt.Sprintf("%T", err)
}
