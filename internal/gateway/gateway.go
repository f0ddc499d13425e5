// Package gateway serves the NLC-9 codec over HTTP and WebSocket so
// out-of-process tooling can mint and inspect frames.
package gateway

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"nlc9-swarm/internal/nlc9"
)

// Server exposes the codec endpoints. Zero value is not usable; construct
// with New.
type Server struct {
	codec *nlc9.Codec
	log   zerolog.Logger
}

func New(codec *nlc9.Codec, log zerolog.Logger) *Server {
	return &Server{codec: codec, log: log.With().Str("component", "gateway").Logger()}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /ping", s.handlePing)
	mux.HandleFunc("GET /spec", s.handleSpec)
	mux.HandleFunc("GET /verbs", s.handleVerbs)
	mux.HandleFunc("GET /objects", s.handleObjects)
	mux.HandleFunc("POST /verbs/register", s.handleRegisterVerb)
	mux.HandleFunc("POST /objects/register", s.handleRegisterObject)
	mux.HandleFunc("POST /schema/register", s.handleRegisterSchema)
	mux.HandleFunc("GET /schema/{verb}/{object}", s.handleGetSchema)
	mux.HandleFunc("POST /encode", s.handleEncode)
	mux.HandleFunc("POST /decode", s.handleDecode)
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// Serve runs the gateway until the listener fails or the server is shut
// down by the caller.
func (s *Server) Serve(addr string) *http.Server {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	go func() {
		s.log.Info().Str("addr", addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.log.Error().Err(err).Msg("gateway server stopped")
		}
	}()
	return srv
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprint(w, "pong")
}

func (s *Server) handleSpec(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"version": nlc9.Version,
		"flags":   []string{"ACK", "STREAM", "URGENT", "ENCRYPTED", "SIGNED"},
		"limbs": map[string]string{
			"0": "HEADER: 4b version | 12b flags | 16b domain_id",
			"1": "VERB_ID",
			"2": "OBJECT_ID",
			"3": "PARAM_A",
			"4": "PARAM_B",
			"5": "PARAM_C",
			"6": "TIMESTAMP (unix seconds) or value",
			"7": "CORRELATION_ID / nonce",
			"8": "CRC32 of limbs[0..7] (big-endian packed)",
		},
		"seeded_verbs":   s.codec.Registry.Verbs(),
		"seeded_objects": s.codec.Registry.Objects(),
		"notes": []string{
			"Unknown verbs/objects/strings map via CRC32(name.lower()).",
			"Use /schema/register to type params for precise round-trips.",
			"Binary frame is exactly 36 bytes, nine big-endian uint32 limbs.",
		},
	})
}

func (s *Server) handleVerbs(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"verbs": s.codec.Registry.Verbs()})
}

func (s *Server) handleObjects(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"objects": s.codec.Registry.Objects()})
}

type registryItem struct {
	Name string `json:"name"`
	ID   uint32 `json:"id,omitempty"`
}

func (s *Server) handleRegisterVerb(w http.ResponseWriter, r *http.Request) {
	var item registryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if item.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name required"))
		return
	}
	id, created := s.codec.Registry.RegisterVerb(item.Name, item.ID)
	status := "ok"
	if !created {
		status = "exists"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "name": item.Name, "id": id})
}

func (s *Server) handleRegisterObject(w http.ResponseWriter, r *http.Request) {
	var item registryItem
	if err := json.NewDecoder(r.Body).Decode(&item); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if item.Name == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("name required"))
		return
	}
	id, created := s.codec.Registry.RegisterObject(item.Name, item.ID)
	status := "ok"
	if !created {
		status = "exists"
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": status, "name": item.Name, "id": id})
}

type schemaRegistration struct {
	Verb   string           `json:"verb"`
	Object string           `json:"object"`
	Params []nlc9.ParamSpec `json:"params"`
}

func (s *Server) handleRegisterSchema(w http.ResponseWriter, r *http.Request) {
	var body schemaRegistration
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := s.codec.RegisterSchema(body.Verb, body.Object, body.Params); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verb":      body.Verb,
		"verb_id":   s.codec.Registry.VerbID(body.Verb),
		"object":    body.Object,
		"object_id": s.codec.Registry.ObjectID(body.Object),
		"params":    body.Params,
		"message":   "Schema registered",
	})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	verb := r.PathValue("verb")
	object := r.PathValue("object")
	params, ok := s.codec.Schema(verb, object)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"verb": verb, "object": object, "schema": nil})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"verb":      verb,
		"verb_id":   s.codec.Registry.VerbID(verb),
		"object":    object,
		"object_id": s.codec.Registry.ObjectID(object),
		"params":    params,
	})
}

type encodeRequest struct {
	Verb          string         `json:"verb"`
	Object        string         `json:"object"`
	Params        map[string]any `json:"params,omitempty"`
	Flags         []string       `json:"flags,omitempty"`
	Domain        string         `json:"domain,omitempty"`
	Timestamp     *uint32        `json:"timestamp,omitempty"`
	CorrelationID *uint32        `json:"correlation_id,omitempty"`
}

func (s *Server) encodeResponse(req encodeRequest) (map[string]any, error) {
	flags, err := nlc9.ParseFlags(req.Flags)
	if err != nil {
		return nil, err
	}
	creq := nlc9.EncodeRequest{
		Verb:   req.Verb,
		Object: req.Object,
		Params: req.Params,
		Flags:  flags,
		Domain: req.Domain,
		CorrID: req.CorrelationID,
	}
	if req.Timestamp != nil {
		creq.Timestamp = *req.Timestamp
	}
	f, err := s.codec.Encode(creq)
	if err != nil {
		return nil, err
	}
	_, hdrFlags, domain := nlc9.UnpackHeader(f.Header)
	return map[string]any{
		"numbers": f.Numbers(),
		"base64":  f.Base64(),
		"hex":     f.Hex(),
		"header": map[string]any{
			"version":   nlc9.Version,
			"flags":     hdrFlags.Names(),
			"domain_id": domain,
			"verb_id":   f.VerbID,
			"verb":      s.codec.Registry.VerbName(f.VerbID),
			"object_id": f.ObjectID,
			"object":    s.codec.Registry.ObjectName(f.ObjectID),
		},
	}, nil
}

func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	resp, err := s.encodeResponse(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type decodeRequest struct {
	Numbers []uint32 `json:"numbers,omitempty"`
	Base64  string   `json:"base64,omitempty"`
	Hex     string   `json:"hex,omitempty"`
}

func (d decodeRequest) frame() (nlc9.Frame, error) {
	provided := 0
	if d.Numbers != nil {
		provided++
	}
	if d.Base64 != "" {
		provided++
	}
	if d.Hex != "" {
		provided++
	}
	if provided != 1 {
		return nlc9.Frame{}, fmt.Errorf("provide exactly one of: numbers, base64, hex")
	}
	switch {
	case d.Numbers != nil:
		if len(d.Numbers) != nlc9.Limbs {
			return nlc9.Frame{}, fmt.Errorf("numbers must contain exactly %d integers", nlc9.Limbs)
		}
		var nums [nlc9.Limbs]uint32
		copy(nums[:], d.Numbers)
		return nlc9.FromNumbers(nums), nil
	case d.Base64 != "":
		b, err := base64.StdEncoding.DecodeString(d.Base64)
		if err != nil {
			return nlc9.Frame{}, fmt.Errorf("invalid base64: %w", err)
		}
		return nlc9.Unmarshal(b)
	default:
		b, err := hex.DecodeString(d.Hex)
		if err != nil {
			return nlc9.Frame{}, fmt.Errorf("invalid hex: %w", err)
		}
		return nlc9.Unmarshal(b)
	}
}

// expandFrame mirrors the decode response shape: full expansion plus a
// checksum verdict rather than a hard rejection.
func (s *Server) expandFrame(f nlc9.Frame) map[string]any {
	d, checksumOK := s.codec.Expand(f)
	return map[string]any{
		"numbers": f.Numbers(),
		"header": map[string]any{
			"version":   d.Version,
			"flags":     d.Flags.Names(),
			"domain_id": d.Domain,
		},
		"decoded": map[string]any{
			"verb_id":        d.VerbID,
			"verb":           d.Verb,
			"object_id":      d.ObjectID,
			"object":         d.Object,
			"params":         d.Params,
			"timestamp":      f.Timestamp,
			"correlation_id": f.CorrID,
		},
		"base64":      f.Base64(),
		"hex":         f.Hex(),
		"checksum_ok": checksumOK,
	}
}

func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	var req decodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	f, err := req.frame()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, s.expandFrame(f))
}
