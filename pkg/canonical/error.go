package canonical

// EncodingError is returned when a value cannot be represented as canonical
// JSON (e.g. it contains a channel, function, or cyclic reference).
type EncodingError struct {
	Err error
}

func (e EncodingError) Error() string {
	if e.Err == nil {
		return "value is not canonically encodable"
	}

	return "value is not canonically encodable: " + e.Err.Error()
}

func (e EncodingError) Unwrap() error {
	return e.Err
}
