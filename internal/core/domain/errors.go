package domain

import "errors"

var (
	ErrJoinInProgress  = errors.New("join already in progress")
	ErrNotConnected    = errors.New("not connected to a voice session")
	ErrTokenRequest    = errors.New("token request failed")
	ErrSessionConnect  = errors.New("session connect failed")
	ErrDeviceNotFound  = errors.New("device not found")
	ErrInvalidSettings = errors.New("invalid settings")
)
