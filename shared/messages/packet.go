package messages

// Packet is the only message routed through necs. It carries one encoded
// message and the channel it was sent on.
type Packet struct {
	Channel uint8
	Payload []byte
}
