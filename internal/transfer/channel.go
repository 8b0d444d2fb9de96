package transfer

// Channel is the ordered, message-oriented transport a transfer runs over.
// Send and SendText queue the message and return without waiting for the
// peer; BufferedAmount reports how many queued bytes are not yet on the wire.
type Channel interface {
	Open() bool
	BufferedAmount() uint64
	Send(data []byte) error
	SendText(text string) error
}

func writeFrame(ch Channel, codec Codec, f Frame) error {
	payload, binary, err := codec.Encode(f)
	if err != nil {
		return err
	}
	if binary {
		return ch.Send(payload)
	}
	return ch.SendText(string(payload))
}
