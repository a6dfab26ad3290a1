package model

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
		Time:        cbor.TimeUnix,
	}.EncMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR encoder mode: %v", err))
	}

	// lenient so newer senders with extra fields still decode.
	decMode, err = cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyQuiet,
		IndefLength: cbor.IndefLengthAllowed,
	}.DecMode()
	if err != nil {
		panic(fmt.Sprintf("failed to create CBOR decoder mode: %v", err))
	}
}

func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// EncodeFrame encodes a whole message for the wire.
func EncodeFrame(msg Message) ([]byte, error) {
	return Marshal(msg)
}

// DecodeFrame decodes a wire frame into a message.
func DecodeFrame(data []byte) (Message, error) {
	var msg Message
	if err := Unmarshal(data, &msg); err != nil {
		return Message{}, fmt.Errorf("failed to decode frame: %w", err)
	}
	return msg, nil
}
