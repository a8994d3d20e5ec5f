package messages

// JoinRequest is sent by a client on the reliable channel after connecting.
type JoinRequest struct {
	Version    string
	PlayerName string
}

// JoinRejected is sent by the server when a join request is refused.
type JoinRejected struct {
	Reason string
}
