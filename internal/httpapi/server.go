package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"styled/internal/backend"
	"styled/internal/manager"
	"styled/pkg/types"
)

// Service defines the methods required by the HTTP API layer.
type Service interface {
	ListStyles() []types.Style
	StyleByID(id string) types.Style
	LoadedStyles() []string
	Process(ctx context.Context, req types.ProcessRequest) (*types.Image, backend.Kind, error)
	Unload(styleID string) error
	UnloadAll() error
	Status() types.StatusResponse
	Ready() bool
}

func NewMux(svc Service) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	// Compression for JSON endpoints; encoded image bodies don't shrink but
	// chi skips types it cannot help with.
	r.Use(middleware.Compress(5))
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsAllowedOrigins,
			AllowedMethods: corsAllowedMethods,
			AllowedHeaders: corsAllowedHeaders,
		}))
	}

	r.Get("/styles", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, types.StylesResponse{Styles: svc.ListStyles()})
	})

	r.Get("/styles/loaded", func(w http.ResponseWriter, r *http.Request) {
		loaded := svc.LoadedStyles()
		if loaded == nil {
			loaded = []string{}
		}
		writeJSON(w, types.LoadedStylesResponse{Loaded: loaded})
	})

	r.Post("/process", func(w http.ResponseWriter, r *http.Request) {
		handleProcess(svc, w, r)
	})

	r.Delete("/styles/{id}", func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if err := svc.Unload(id); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Delete("/styles", func(w http.ResponseWriter, r *http.Request) {
		if err := svc.UnloadAll(); err != nil {
			writeJSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, svc.Status())
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if svc.Ready() {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ready"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte("no backend available"))
	})

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	MountSwagger(r)

	return r
}

// handleProcess decodes the uploaded image, runs it through the dispatcher
// and streams the stylized result back in the same format it arrived in.
func handleProcess(svc Service, w http.ResponseWriter, r *http.Request) {
	ct := strings.ToLower(r.Header.Get("Content-Type"))
	var jpegIn bool
	switch {
	case strings.HasPrefix(ct, "image/png"):
	case strings.HasPrefix(ct, "image/jpeg"):
		jpegIn = true
	default:
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be image/png or image/jpeg")
		return
	}

	styleID := r.URL.Query().Get("style")
	if strings.TrimSpace(styleID) == "" {
		writeJSONError(w, http.StatusBadRequest, "style query parameter is required")
		return
	}
	strength, err := parseStrength(r.URL.Query().Get("strength"))
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	img, err := decodeImage(r.Body)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, "invalid image body: "+err.Error())
		return
	}

	if wantResize(r.URL.Query().Get("resize")) {
		style := svc.StyleByID(styleID)
		img = resizeImage(img, style.InputWidth, style.InputHeight)
	}

	lvl := requestLogLevel(r)
	rid := middleware.GetReqID(r.Context())
	if lvl >= LevelInfo {
		zlog.Info().Str("request_id", rid).Str("style", styleID).
			Float64("strength", strength).
			Int("width", img.Width).Int("height", img.Height).
			Msg("process start")
	}

	// Join server base context with request context so shutdown cancels work too.
	ctx, cancel := joinContexts(serverBaseCtx, r.Context())
	defer cancel()
	if processTimeout > 0 {
		var tcancel context.CancelFunc
		ctx, tcancel = context.WithTimeout(ctx, time.Duration(processTimeout)*time.Second)
		defer tcancel()
	}

	start := time.Now()
	out, kind, err := svc.Process(ctx, types.ProcessRequest{Image: img, StyleID: styleID, Strength: strength})
	if err != nil {
		// Client disconnect or shutdown: nothing useful to write.
		if r.Context().Err() != nil || serverBaseCtx.Err() != nil {
			return
		}
		status := http.StatusInternalServerError
		switch {
		case types.IsInvalidImage(err):
			status = http.StatusBadRequest
		case manager.IsAllBackendsFailed(err):
			status = http.StatusInternalServerError
		default:
			if he, ok := err.(HTTPError); ok {
				status = he.StatusCode()
			}
		}
		observeStylize(string(kind), styleID, "error", time.Since(start))
		writeJSONError(w, status, err.Error())
		if lvl >= LevelInfo {
			zlog.Info().Str("request_id", rid).Int("status", status).
				Dur("dur", time.Since(start)).Err(err).Msg("process end")
		}
		return
	}
	observeStylize(string(kind), styleID, "ok", time.Since(start))

	var body []byte
	var outCT string
	if jpegIn {
		body, err = encodeJPEG(out, 90)
		outCT = "image/jpeg"
	} else {
		body, err = encodePNG(out)
		outCT = "image/png"
	}
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Content-Type", outCT)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.Header().Set("X-Backend", string(kind))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)

	if lvl >= LevelInfo {
		zlog.Info().Str("request_id", rid).Int("status", http.StatusOK).
			Str("backend", string(kind)).Dur("dur", time.Since(start)).
			Msg("process end")
	}
}

// parseStrength accepts a 0-1 fraction or a [2,100] percentage. Empty means
// full strength. Values in (1,2) are over-range fractions and clamp to full
// strength rather than being misread as tiny percentages; values above 100
// clamp to full strength as well. Negatives are clamped downstream.
func parseStrength(raw string) (float64, error) {
	if raw == "" {
		return 1.0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, strconvErr(raw)
	}
	switch {
	case v >= 2 && v <= 100:
		v /= 100
	case v > 1:
		v = 1
	}
	return v, nil
}

func strconvErr(raw string) error {
	return &badParamError{param: "strength", value: raw}
}

type badParamError struct {
	param string
	value string
}

func (e *badParamError) Error() string {
	return "invalid value " + strconv.Quote(e.value) + " for query parameter " + e.param
}

func wantResize(raw string) bool {
	switch strings.ToLower(raw) {
	case "1", "true", "yes":
		return true
	}
	return false
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		writeJSONError(w, http.StatusInternalServerError, "failed to encode response")
	}
}
