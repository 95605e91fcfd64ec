package api

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"

	"coordinator-core/core"
	"coordinator-core/core/auth"
	"coordinator-core/core/security"
)

// bodyHash reads and replaces r.Body, returning its hex SHA-256.
func bodyHash(r *http.Request) (string, error) {
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return "", err
	}
	r.Body = io.NopCloser(bytes.NewReader(b))
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// signedSourceKey is the context key for the identity a request
// authenticated as, threaded to the handler by requireSignature.
type signedSourceKey struct{}

func withSignedSource(r *http.Request, sourceID string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), signedSourceKey{}, sourceID))
}

func signedSourceFrom(r *http.Request) string {
	v, _ := r.Context().Value(signedSourceKey{}).(string)
	return v
}

// requireSignature verifies the x-agent-id/x-peer-id, x-timestamp-ms,
// x-nonce and x-signature headers against s.Verifier, per §4.A / §6. On
// success it records the accepted request in the security event log and
// calls next; on failure it writes the mapped error response itself.
func (s *Server) requireSignature(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sourceID := r.Header.Get("x-agent-id")
		if sourceID == "" {
			sourceID = r.Header.Get("x-peer-id")
		}
		tsStr := r.Header.Get("x-timestamp-ms")
		ts, err := strconv.ParseInt(tsStr, 10, 64)
		if sourceID == "" || err != nil {
			writeError(w, core.Fail(core.ErrValidationFailed, "missing auth headers"))
			return
		}
		hash, err := bodyHash(r)
		if err != nil {
			writeError(w, core.Fail(core.ErrValidationFailed, "unreadable body"))
			return
		}
		sigHex := r.Header.Get("x-signature")
		sig, err := hex.DecodeString(sigHex)
		if err != nil {
			writeError(w, core.Fail(core.ErrBadSignature, "signature not hex"))
			return
		}

		sourceID, cErr := s.Verifier.Verify(auth.SignedRequest{
			SourceID:    sourceID,
			Method:      r.Method,
			Path:        r.URL.Path,
			BodySha256:  hash,
			TimestampMs: ts,
			Nonce:       r.Header.Get("x-nonce"),
			Signature:   sig,
		})
		if cErr != nil {
			writeError(w, cErr)
			return
		}

		if s.Events != nil {
			s.Events.Record(security.Event{
				SourceID: sourceID, Method: r.Method, Path: r.URL.Path,
				Signature: sigHex, TimestampMs: ts,
			})
		}
		next(w, withSignedSource(r, sourceID))
	}
}

// requireMeshToken gates a route behind the shared coordinator-to-coordinator
// secret, per §4.A.
func (s *Server) requireMeshToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-mesh-token")
		if token == "" || s.MeshGate == nil || !s.MeshGate.Check(token) {
			writeError(w, core.Fail(core.ErrMeshTokenRequired, "missing or invalid mesh token"))
			return
		}
		next(w, r)
	}
}

// requirePortalToken gates admin/portal-only routes.
func (s *Server) requirePortalToken(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := r.Header.Get("x-portal-token")
		if token == "" || s.PortalGate == nil || !s.PortalGate.Check(token) {
			writeError(w, core.Fail(core.ErrMeshTokenRequired, "missing or invalid portal token"))
			return
		}
		next(w, r)
	}
}
