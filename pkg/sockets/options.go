package sockets

import (
	"time"

	"github.com/gorilla/websocket"
)

func WithPingInterval(p time.Duration) func(*Conn) {
	return func(s *Conn) {
		s.pingInterval = p
	}
}

func WithHandshakeTimeout(t time.Duration) func(*Conn) {
	return func(s *Conn) {
		s.handshakeTimeout = t
	}
}

// WithTextFrames sends text frames instead of binary ones.
func WithTextFrames() func(*Conn) {
	return func(s *Conn) {
		s.messageType = websocket.TextMessage
	}
}

func InsecureSkipVerify() func(*Conn) {
	return func(s *Conn) {
		s.sslSkipVerify = true
	}
}

func OnMessage(f func([]byte, Connection)) func(*Conn) {
	return func(s *Conn) {
		s.onMessage = f
	}
}

func OnError(f func(error)) func(*Conn) {
	return func(s *Conn) {
		s.onError = f
	}
}

func OnConnected(f func(Connection)) func(*Conn) {
	return func(s *Conn) {
		s.onConnected = f
	}
}
