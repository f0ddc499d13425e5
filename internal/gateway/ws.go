package gateway

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"

	"nlc9-swarm/internal/nlc9"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The gateway is a local tool endpoint; cross-origin browser use is
	// expected during development.
	CheckOrigin: func(*http.Request) bool { return true },
}

// handleWS streams encode/decode over one socket. Binary messages are
// treated as raw 36-byte frames; text messages are either base64 frames
// or JSON encode requests.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var reply any
		switch msgType {
		case websocket.BinaryMessage:
			reply = s.wsDecodeBytes(data)
		case websocket.TextMessage:
			reply = s.wsHandleText(data)
		default:
			continue
		}
		if err := conn.WriteJSON(reply); err != nil {
			return
		}
	}
}

func (s *Server) wsDecodeBytes(data []byte) any {
	f, err := nlc9.Unmarshal(data)
	if err != nil {
		return map[string]string{"error": "binary decode failed: " + err.Error()}
	}
	return s.expandFrame(f)
}

func (s *Server) wsHandleText(data []byte) any {
	// Base64-encoded frames first, then JSON encode requests.
	if b, err := base64.StdEncoding.DecodeString(string(data)); err == nil && len(b) == nlc9.FrameSize {
		f, err := nlc9.Unmarshal(b)
		if err == nil {
			return s.expandFrame(f)
		}
	}

	var req encodeRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return map[string]string{"error": "unrecognized frame: " + err.Error()}
	}
	resp, err := s.encodeResponse(req)
	if err != nil {
		return map[string]string{"error": err.Error()}
	}
	return resp
}
