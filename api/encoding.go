package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/vmihailenco/msgpack/v5"
)

// Encoding is a wire format for API responses and websocket frames
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
)

const (
	contentTypeJSON    = "application/json"
	contentTypeMsgpack = "application/msgpack"
)

// ParseEncoding converts a config value into an Encoding
func ParseEncoding(s string) (Encoding, error) {
	switch e := Encoding(strings.ToLower(strings.TrimSpace(s))); e {
	case EncodingJSON, EncodingMsgpack:
		return e, nil
	case "":
		return EncodingJSON, nil
	default:
		return "", fmt.Errorf("unknown encoding %q", s)
	}
}

// Marshal encodes v in this encoding
func (e Encoding) Marshal(v interface{}) ([]byte, error) {
	if e == EncodingMsgpack {
		return msgpack.Marshal(v)
	}
	return json.Marshal(v)
}

// ContentType returns the HTTP content type of the encoding
func (e Encoding) ContentType() string {
	if e == EncodingMsgpack {
		return contentTypeMsgpack
	}
	return contentTypeJSON
}

// frameType returns the websocket message type frames are sent with
func (e Encoding) frameType() int {
	if e == EncodingMsgpack {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}

// negotiate picks msgpack when the client asks for it and JSON otherwise
func negotiate(r *http.Request) Encoding {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mediaType, _, _ := strings.Cut(strings.TrimSpace(part), ";")
		if strings.EqualFold(mediaType, contentTypeMsgpack) {
			return EncodingMsgpack
		}
	}
	return EncodingJSON
}

// respond writes data in the encoding the request negotiated
func (a *API) respond(w http.ResponseWriter, r *http.Request, data interface{}, statusCode int) {
	enc := negotiate(r)
	body, err := enc.Marshal(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode response", err, a.logger)
		return
	}

	w.Header().Set("Content-Type", enc.ContentType())
	w.WriteHeader(statusCode)
	if _, err := w.Write(body); err != nil {
		a.logger.Debugw("Failed to write response", "error", err)
	}
}
