package flume

import (
	"time"

	"github.com/google/uuid"
)

type kind uint8

const (
	kindLoading kind = iota
	kindSuccess
	kindFailure
)

// Result is an immutable three-state container flowing through a pipeline.
// Every Result is exactly one of loading, success, or failure, optionally
// carrying a payload of type T. A failure additionally carries a cause.
//
// Results are values: the transform methods (ToLoading, ToSuccess,
// ToFailure) return new Results and never modify the receiver. The payload
// may be absent in any state; absence is distinct from the zero value of T
// and is reported through the second return of Data.
//
// Each Result carries an identity (ID, CreatedAt) minted at construction,
// useful for correlating emissions in logs and hook events.
type Result[T any] struct {
	createdAt time.Time
	data      *T
	cause     error
	id        uuid.UUID
	kind      kind
}

func newResult[T any](k kind, data *T, cause error) Result[T] {
	return Result[T]{
		kind:      k,
		data:      data,
		cause:     cause,
		id:        uuid.New(),
		createdAt: time.Now().UTC(),
	}
}

// Loading returns a loading Result with no payload.
func Loading[T any]() Result[T] {
	return newResult[T](kindLoading, nil, nil)
}

// LoadingWith returns a loading Result carrying data.
func LoadingWith[T any](data T) Result[T] {
	return newResult(kindLoading, &data, nil)
}

// Success returns a success Result with no payload.
func Success[T any]() Result[T] {
	return newResult[T](kindSuccess, nil, nil)
}

// SuccessWith returns a success Result carrying data.
func SuccessWith[T any](data T) Result[T] {
	return newResult(kindSuccess, &data, nil)
}

// Failure returns a failure Result with the given cause and no payload.
func Failure[T any](cause error) Result[T] {
	return newResult[T](kindFailure, nil, cause)
}

// FailureWith returns a failure Result carrying both a cause and data.
func FailureWith[T any](cause error, data T) Result[T] {
	return newResult(kindFailure, &data, cause)
}

// IsLoading reports whether the Result is in the loading state.
func (r Result[T]) IsLoading() bool { return r.kind == kindLoading }

// IsSuccess reports whether the Result is in the success state.
func (r Result[T]) IsSuccess() bool { return r.kind == kindSuccess }

// IsFailure reports whether the Result is in the failure state.
func (r Result[T]) IsFailure() bool { return r.kind == kindFailure }

// Cause returns the failure cause, or nil unless the Result is a failure.
func (r Result[T]) Cause() error { return r.cause }

// Data returns the payload and whether one is present.
func (r Result[T]) Data() (T, bool) {
	if r.data == nil {
		var zero T
		return zero, false
	}
	return *r.data, true
}

// MustData returns the payload or panics if none is present.
func (r Result[T]) MustData() T {
	if r.data == nil {
		panic("flume: Result has no data")
	}
	return *r.data
}

// HasData reports whether a payload is present.
func (r Result[T]) HasData() bool { return r.data != nil }

// ID returns the identity minted when this Result was created.
func (r Result[T]) ID() uuid.UUID { return r.id }

// CreatedAt returns the UTC creation time of this Result.
func (r Result[T]) CreatedAt() time.Time { return r.createdAt }

// OnLoading invokes handler with the Result if it is loading.
// Returns the receiver so inspections can be chained.
func (r Result[T]) OnLoading(handler func(Result[T])) Result[T] {
	if r.kind == kindLoading && handler != nil {
		handler(r)
	}
	return r
}

// OnSuccess invokes handler with the Result if it is a success.
func (r Result[T]) OnSuccess(handler func(Result[T])) Result[T] {
	if r.kind == kindSuccess && handler != nil {
		handler(r)
	}
	return r
}

// OnFailure invokes handler with the cause and the Result if it is a failure.
func (r Result[T]) OnFailure(handler func(error, Result[T])) Result[T] {
	if r.kind == kindFailure && handler != nil {
		handler(r.cause, r)
	}
	return r
}

// ToLoading returns a new loading Result carrying the receiver's payload.
func (r Result[T]) ToLoading() Result[T] {
	return newResult(kindLoading, r.data, nil)
}

// ToSuccess returns a new success Result carrying the receiver's payload.
func (r Result[T]) ToSuccess() Result[T] {
	return newResult(kindSuccess, r.data, nil)
}

// ToFailure returns a new failure Result carrying the receiver's payload
// and the given cause.
func (r Result[T]) ToFailure(cause error) Result[T] {
	return newResult(kindFailure, r.data, cause)
}
