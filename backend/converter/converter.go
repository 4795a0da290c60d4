package converter

type Converter interface {
	// To converts the given value to a checkpoint payload
	To(v any) ([]byte, error)

	// From converts the given payload to a value
	From(data []byte, v any) error
}

var DefaultConverter Converter = &jsonConverter{}
