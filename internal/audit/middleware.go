package audit

import (
	"bytes"
	"encoding/json"
	"io"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"tallo.app/internal/auth"
	"tallo.app/internal/tenant"
)

// maxCapturedBody caps how much of either body is inspected for details
// and resource-id extraction.
const maxCapturedBody = 64 << 10

// Middleware observes the outbound response of a state-changing route and
// records one entry per successful (2xx) request. The recorder only fires
// when both the principal and the organization are bound to the context;
// requests that never resolved a principal produce nothing. Persistence is
// fire-and-forget and can never alter the response already sent.
func (r *Recorder) Middleware(action Action, resourceType string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			var reqBody []byte
			if req.Method != http.MethodGet && req.Body != nil {
				reqBody, _ = io.ReadAll(req.Body)
				req.Body = io.NopCloser(bytes.NewReader(reqBody))
			}

			cw := &captureWriter{ResponseWriter: w, code: http.StatusOK}
			next.ServeHTTP(cw, req)

			// Exactly one entry per request regardless of how the
			// response was finalized.
			cw.once.Do(func() {
				r.observe(req, cw, action, resourceType, reqBody)
			})
		})
	}
}

func (r *Recorder) observe(req *http.Request, cw *captureWriter, action Action, resourceType string, reqBody []byte) {
	if cw.code < 200 || cw.code >= 300 {
		return
	}
	principal, ok := auth.PrincipalFromContext(req.Context())
	if !ok {
		return
	}
	orgID, ok := tenant.OrganizationFromContext(req.Context())
	if !ok {
		return
	}

	resourceID := chi.URLParam(req, "id")
	if resourceID == "" {
		resourceID = idFromJSON(reqBody)
	}
	if resourceID == "" {
		resourceID = idFromJSON(cw.body.Bytes())
	}

	details := map[string]any{
		"method": req.Method,
		"path":   req.URL.Path,
	}
	if q := req.URL.RawQuery; q != "" {
		details["query"] = q
	}
	if params := routeParams(req); len(params) > 0 {
		details["params"] = params
	}
	if len(reqBody) > 0 && req.Method != http.MethodGet {
		var body map[string]any
		if err := json.Unmarshal(truncate(reqBody), &body); err == nil {
			details["body"] = redact(body)
		}
	}
	raw, err := json.Marshal(details)
	if err != nil {
		raw = nil
	}

	r.Record(&Entry{
		UserID:         principal.UserID,
		OrganizationID: orgID,
		Action:         action,
		ResourceType:   resourceType,
		ResourceID:     resourceID,
		Details:        raw,
		IPAddress:      ClientIP(req),
		UserAgent:      req.UserAgent(),
	})
}

type captureWriter struct {
	http.ResponseWriter
	code int
	body bytes.Buffer
	once sync.Once
}

func (w *captureWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *captureWriter) Write(p []byte) (int, error) {
	if room := maxCapturedBody - w.body.Len(); room > 0 {
		if len(p) <= room {
			w.body.Write(p)
		} else {
			w.body.Write(p[:room])
		}
	}
	return w.ResponseWriter.Write(p)
}

// redactedKeys are matched as substrings of lower-cased field names.
var redactedKeys = []string{"password", "secret", "token", "authorization"}

func redact(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		lower := strings.ToLower(k)
		masked := false
		for _, needle := range redactedKeys {
			if strings.Contains(lower, needle) {
				out[k] = "[REDACTED]"
				masked = true
				break
			}
		}
		if masked {
			continue
		}
		if nested, ok := v.(map[string]any); ok {
			out[k] = redact(nested)
			continue
		}
		out[k] = v
	}
	return out
}

func idFromJSON(b []byte) string {
	if len(b) == 0 {
		return ""
	}
	var body map[string]any
	if err := json.Unmarshal(truncate(b), &body); err != nil {
		return ""
	}
	switch v := body["id"].(type) {
	case string:
		return v
	case float64:
		if v == math.Trunc(v) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

func truncate(b []byte) []byte {
	if len(b) > maxCapturedBody {
		return b[:maxCapturedBody]
	}
	return b
}

func routeParams(req *http.Request) map[string]string {
	rctx := chi.RouteContext(req.Context())
	if rctx == nil {
		return nil
	}
	params := make(map[string]string, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}

// ClientIP extracts the caller address, honoring X-Forwarded-For.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
