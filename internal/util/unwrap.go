package util

// Unwrap returns root error peeling stackerr (Underlying) and pkg/errors (Cause) wrappers.
func Unwrap(err error) error {
	type hasUnderlying interface {
		Underlying() error
	}
	type hasCause interface {
		Cause() error
	}
	for err != nil {
		switch e := err.(type) {
		case hasUnderlying:
			err = e.Underlying()
		case hasCause:
			err = e.Cause()
		default:
			return err
		}
	}
	return err
}
