package proto

type protoError string

const (
	ErrInvalidPayload = protoError("relay: invalid message payload")
	ErrMissingType    = protoError("relay: message does not contain a message type")
)

func (e protoError) Error() string {
	return string(e)
}
