// Package merr provides standardized error messaging for the mallocator facade.
package merr

import (
	"fmt"
	"runtime"
)

// Category groups errors by the subsystem that raised them.
type Category string

const (
	CategoryHierarchy  Category = "HIERARCHY"
	CategoryAllocation Category = "ALLOCATION"
	CategoryBackend    Category = "BACKEND"
	CategoryConfig     Category = "CONFIG"
)

// FacadeError is a consistent error shape used across the facade.
type FacadeError struct {
	Category Category
	Code     string
	Message  string
	Context  map[string]interface{}
	Caller   string
}

// Error implements the error interface.
func (e *FacadeError) Error() string {
	return fmt.Sprintf("[%s:%s] %s (caller: %s)", e.Category, e.Code, e.Message, e.Caller)
}

// New creates a new FacadeError, recording the immediate caller.
func New(category Category, code, message string, context map[string]interface{}) *FacadeError {
	pc, _, _, ok := runtime.Caller(1)
	caller := "unknown"
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fn.Name()
		}
	}

	return &FacadeError{
		Category: category,
		Code:     code,
		Message:  message,
		Context:  context,
		Caller:   caller,
	}
}

// NameCollision reports that create_child found an existing sibling with the same name.
func NameCollision(parentName, childName string) *FacadeError {
	return New(CategoryHierarchy, "NAME_COLLISION",
		fmt.Sprintf("child %q already exists under %q", childName, parentName),
		map[string]interface{}{"parent": parentName, "child": childName})
}

// ResourceExhaustion reports that a handle or tree descriptor could not be allocated.
func ResourceExhaustion(what string) *FacadeError {
	return New(CategoryHierarchy, "RESOURCE_EXHAUSTION",
		fmt.Sprintf("failed to allocate %s", what),
		map[string]interface{}{"what": what})
}

// BackendCreateFailed reports that a backend's create_child declined to propagate.
func BackendCreateFailed(name string) *FacadeError {
	return New(CategoryBackend, "BACKEND_CREATE_FAILED",
		fmt.Sprintf("backend declined to create a child for %q", name),
		map[string]interface{}{"name": name})
}

// InvalidConfig reports a malformed tree/backend configuration document.
func InvalidConfig(reason string) *FacadeError {
	return New(CategoryConfig, "INVALID_CONFIG", reason, nil)
}

// PreconditionViolated is raised (via panic, never returned) when a handle is used
// with a zero reference count. This is a programming error, not a recoverable one.
type PreconditionViolated struct {
	*FacadeError
}

// NewPreconditionViolated builds the panic value used when a handle's ref_count
// invariant is violated by the caller.
func NewPreconditionViolated(operation, handleName string) *PreconditionViolated {
	return &PreconditionViolated{
		FacadeError: New(CategoryHierarchy, "PRECONDITION_VIOLATED",
			fmt.Sprintf("%s called on handle %q with ref_count == 0", operation, handleName),
			map[string]interface{}{"operation": operation, "handle": handleName}),
	}
}
