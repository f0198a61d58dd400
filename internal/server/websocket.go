package server

import (
	"net/http"

	"github.com/gorilla/websocket"
)

// wsUpgrader: upgrade settings for the quota stream socket.
// The operator UI is same-origin and the route sits behind API key auth, so
// Origin checking stays permissive.
var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}
