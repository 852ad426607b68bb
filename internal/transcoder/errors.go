package transcoder

import "fmt"

// DecodeError means the input bytes are not a decodable raster image.
type DecodeError struct {
	Name string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("decode image: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Name, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// EncodeError means resampling or re-encoding failed.
type EncodeError struct {
	Name string
	Err  error
}

func (e *EncodeError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("encode image: %v", e.Err)
	}
	return fmt.Sprintf("encode %s: %v", e.Name, e.Err)
}

func (e *EncodeError) Unwrap() error { return e.Err }
