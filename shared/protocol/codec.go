// Package protocol encodes wire messages: one type byte followed by a
// msgpack body. Both ends must be built from the same message definitions;
// there is no version negotiation.
package protocol

import (
	"errors"
	"fmt"

	"github.com/automoto/boxman/shared/messages"
	"github.com/hashicorp/go-msgpack/v2/codec"
)

// MessageType identifies the body that follows the type byte.
type MessageType byte

const (
	TypePlayerInput MessageType = iota + 1
	TypeSnapshotDiff
	TypeSpawnEntity
	TypeDespawnEntity
	TypePlayerJoined
	TypeWelcome
	TypeJoinRequest
	TypeJoinRejected
)

func (t MessageType) String() string {
	switch t {
	case TypePlayerInput:
		return "PlayerInput"
	case TypeSnapshotDiff:
		return "SnapshotDiff"
	case TypeSpawnEntity:
		return "SpawnEntity"
	case TypeDespawnEntity:
		return "DespawnEntity"
	case TypePlayerJoined:
		return "PlayerJoined"
	case TypeWelcome:
		return "Welcome"
	case TypeJoinRequest:
		return "JoinRequest"
	case TypeJoinRejected:
		return "JoinRejected"
	}
	return fmt.Sprintf("MessageType(%d)", byte(t))
}

var (
	ErrEmptyMessage   = errors.New("empty message")
	ErrUnknownMessage = errors.New("unknown message type")
)

var handle = &codec.MsgpackHandle{}

// TypeOf returns the wire type of a message value or pointer.
func TypeOf(msg any) (MessageType, error) {
	switch msg.(type) {
	case messages.PlayerInput, *messages.PlayerInput:
		return TypePlayerInput, nil
	case messages.SnapshotDiff, *messages.SnapshotDiff:
		return TypeSnapshotDiff, nil
	case messages.SpawnEntity, *messages.SpawnEntity:
		return TypeSpawnEntity, nil
	case messages.DespawnEntity, *messages.DespawnEntity:
		return TypeDespawnEntity, nil
	case messages.PlayerJoined, *messages.PlayerJoined:
		return TypePlayerJoined, nil
	case messages.Welcome, *messages.Welcome:
		return TypeWelcome, nil
	case messages.JoinRequest, *messages.JoinRequest:
		return TypeJoinRequest, nil
	case messages.JoinRejected, *messages.JoinRejected:
		return TypeJoinRejected, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrUnknownMessage, msg)
}

// Encode serializes a message.
func Encode(msg any) ([]byte, error) {
	t, err := TypeOf(msg)
	if err != nil {
		return nil, err
	}
	var body []byte
	if err := codec.NewEncoderBytes(&body, handle).Encode(msg); err != nil {
		return nil, fmt.Errorf("encode %s: %w", t, err)
	}
	return append([]byte{byte(t)}, body...), nil
}

// Decode parses a message and returns it by value.
func Decode(data []byte) (any, error) {
	if len(data) == 0 {
		return nil, ErrEmptyMessage
	}
	t, body := MessageType(data[0]), data[1:]
	switch t {
	case TypePlayerInput:
		return decodeAs[messages.PlayerInput](t, body)
	case TypeSnapshotDiff:
		return decodeAs[messages.SnapshotDiff](t, body)
	case TypeSpawnEntity:
		return decodeAs[messages.SpawnEntity](t, body)
	case TypeDespawnEntity:
		return decodeAs[messages.DespawnEntity](t, body)
	case TypePlayerJoined:
		return decodeAs[messages.PlayerJoined](t, body)
	case TypeWelcome:
		return decodeAs[messages.Welcome](t, body)
	case TypeJoinRequest:
		return decodeAs[messages.JoinRequest](t, body)
	case TypeJoinRejected:
		return decodeAs[messages.JoinRejected](t, body)
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownMessage, data[0])
}

func decodeAs[T any](t MessageType, body []byte) (any, error) {
	var msg T
	if err := codec.NewDecoderBytes(body, handle).Decode(&msg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", t, err)
	}
	return msg, nil
}
