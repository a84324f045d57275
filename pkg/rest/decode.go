package rest

import "github.com/bytedance/sonic"

// Decoder turns raw response bytes into a T. Decode failures are terminal:
// the executor never retries them, since a retry would re-fetch identical
// bytes from an already successful response.
type Decoder[T any] func([]byte) (T, error)

// JSON returns the default Decoder, deserializing the body as JSON.
func JSON[T any]() Decoder[T] {
	return func(b []byte) (T, error) {
		var v T
		err := sonic.Unmarshal(b, &v)
		return v, err
	}
}

// Decode deserializes a response body into a T with the same edge cases
// the executor applies: Void targets always succeed and []byte targets
// receive the raw body. Failures are reported as decoding errors.
func Decode[T any](body []byte) (T, *Error) {
	v, err := decodeBody(body, JSON[T]())
	if err != nil {
		return v, &Error{Kind: KindDecoding, Body: body, Cause: err}
	}
	return v, nil
}

// decodeBody applies the decoding edge cases shared by every execution
// path: a Void target always succeeds without touching the decoder, and a
// raw []byte target receives the body as-is, bypassing generic decoding.
func decodeBody[T any](body []byte, decode Decoder[T]) (T, error) {
	var zero T

	switch any(zero).(type) {
	case Void:
		return zero, nil
	case []byte:
		v := any(append([]byte(nil), body...)).(T)
		return v, nil
	}

	return decode(body)
}
