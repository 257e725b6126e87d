package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ultrapay-backend/internal/generators"
	"ultrapay-backend/internal/handlers"
	"ultrapay-backend/internal/ledger"
	"ultrapay-backend/internal/payment"
	"ultrapay-backend/internal/pipeline"
	"ultrapay-backend/internal/providers"
	"ultrapay-backend/internal/storage"
)

const testWallet = "0xAbCdEf0000000000000000000000000000000001"

type testServer struct {
	router       *gin.Engine
	orchestrator *pipeline.Orchestrator
	ledger       ledger.Ledger
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	registry, err := providers.NewRegistry(providers.Default())
	require.NoError(t, err)

	l := ledger.NewMemoryLedger()
	dispatcher := generators.NewDefaultDispatcher(generators.NewHuggingFaceClient("", "", nil), generators.Options{}, 5*time.Second, zerolog.Nop())
	gate := payment.NewSimulatedGate(payment.Config{
		PayTo:          "0x34033041a5944B8F10f8E4D8496Bfb84f1A293A8",
		FacilitatorURL: "https://facilitator.example",
		Network:        "base-sepolia",
	})
	o := pipeline.NewOrchestrator(registry, gate, dispatcher, storage.NewInlineBackend(), l, "nanobanana", zerolog.Nop())

	router := handlers.NewRouter(handlers.RouterConfig{
		Pipeline:      o,
		Registry:      registry,
		Ledger:        l,
		PublicBaseURL: "http://localhost:3001/",
		Logger:        zerolog.Nop(),
	})
	return &testServer{router: router, orchestrator: o, ledger: l}
}

func (s *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (s *testServer) generate(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	w := s.do(http.MethodPost, "/generate", body, map[string]string{"X-PAYMENT": "simulated-proof"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	s.orchestrator.Wait()
	return decode(t, w)
}

func TestGenerate_ScenarioA_PaidImage(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{
		"prompt":   "a red fox in snow",
		"type":     "image",
		"provider": "nanobanana",
	}, map[string]string{"X-PAYMENT": "simulated-proof"})

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "simulated-proof", w.Header().Get(payment.HeaderResponse))

	resp := decode(t, w)
	assert.Equal(t, true, resp["success"])
	_, err := uuid.Parse(resp["transactionId"].(string))
	assert.NoError(t, err)
	assert.NotEmpty(t, resp["mediaUrl"])
	assert.Equal(t, "image", resp["type"])
	assert.Equal(t, "nanobanana", resp["provider"])
	assert.Equal(t, "NanoBanana", resp["providerName"])
	assert.Equal(t, 0.1, resp["price"])
}

func TestGenerate_ScenarioB_ShortPrompt(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{"prompt": "hi", "type": "image"}, map[string]string{"X-PAYMENT": "simulated-proof"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["error"], "between 3 and 2000")
}

func TestGenerate_ScenarioC_ProviderTypeMismatch(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{
		"prompt":   "a red fox in snow",
		"type":     "image",
		"provider": "veo3",
	}, map[string]string{"X-PAYMENT": "simulated-proof"})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Contains(t, resp["error"], "veo3")
	assert.Equal(t, "video", resp["providerType"])
}

func TestGenerate_ScenarioD_InlineStorageIsResolvable(t *testing.T) {
	s := newTestServer(t)

	resp := s.generate(t, map[string]any{
		"prompt":        "a red fox in snow",
		"type":          "image",
		"walletAddress": testWallet,
	})
	mediaURL := resp["mediaUrl"].(string)
	transactionID := resp["transactionId"].(string)
	require.True(t, strings.HasPrefix(mediaURL, "data:image/png;base64,"))

	w := s.do(http.MethodGet, "/history/"+testWallet, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	assert.Equal(t, strings.ToLower(testWallet), history["walletAddress"])
	assert.Equal(t, float64(1), history["count"])
	txs := history["transactions"].([]any)
	require.Len(t, txs, 1)
	assert.Equal(t, mediaURL, txs[0].(map[string]any)["mediaUrl"])

	w = s.do(http.MethodGet, "/share/"+transactionID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	page := w.Body.String()
	escaped := strings.ReplaceAll(mediaURL, "+", "&#43;")
	assert.Contains(t, page, `<meta property="og:image" content="`+escaped+`">`)
	assert.Contains(t, page, `<img src="`+escaped+`"`)
	assert.Contains(t, page, "summary_large_image")
	assert.Contains(t, page, "http://localhost:3001/share/"+transactionID)
}

func TestGenerate_VideoSharePage(t *testing.T) {
	s := newTestServer(t)

	resp := s.generate(t, map[string]any{"prompt": "waves at dusk", "type": "video", "provider": "runway"})
	assert.Equal(t, 1.2, resp["price"])

	w := s.do(http.MethodGet, "/share/"+resp["transactionId"].(string), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `property="og:video"`)
	assert.Contains(t, w.Body.String(), `name="twitter:card" content="player"`)
	assert.NotContains(t, w.Body.String(), "og:image")
}

func TestGenerate_PaymentRequired(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{"prompt": "a red fox in snow", "type": "image"}, nil)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Payment-Required"))
	assert.Equal(t, "0.1", w.Header().Get("X-Payment-Amount"))
	resp := decode(t, w)
	assert.Equal(t, float64(1), resp["x402Version"])
	accepts := resp["accepts"].([]any)
	require.Len(t, accepts, 1)
	req := accepts[0].(map[string]any)
	assert.Equal(t, "100000", req["maxAmountRequired"])
	assert.Equal(t, "http://localhost:3001/generate", req["resource"])
}

func TestGenerate_LegacyPaymentHeader(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{"prompt": "a red fox in snow", "type": "image"}, map[string]string{"X402-Payment": "legacy-proof"})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestGenerate_InvalidBody(t *testing.T) {
	s := newTestServer(t)

	req, _ := http.NewRequest(http.MethodPost, "/generate", strings.NewReader("{not json"))
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGenerate_UnknownProviderListsAvailable(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/generate", map[string]any{"prompt": "a red fox", "type": "image", "provider": "dall-e"}, nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Invalid provider: dall-e", resp["error"])
	assert.Len(t, resp["availableProviders"], 5)
}

type stubRunner struct {
	err error
}

func (r stubRunner) Run(context.Context, pipeline.Input) (*pipeline.Result, error) {
	return nil, r.err
}

func newStubRouter(runner handlers.Runner, development bool) *gin.Engine {
	gin.SetMode(gin.TestMode)
	registry, _ := providers.NewRegistry(providers.Default())
	return handlers.NewRouter(handlers.RouterConfig{
		Pipeline:      runner,
		Registry:      registry,
		Ledger:        ledger.NewMemoryLedger(),
		PublicBaseURL: "http://localhost:3001",
		Development:   development,
		Logger:        zerolog.Nop(),
	})
}

func postGenerate(router *gin.Engine) *httptest.ResponseRecorder {
	req, _ := http.NewRequest(http.MethodPost, "/generate", strings.NewReader(`{"prompt":"a red fox","type":"image"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestGenerate_UpstreamFailureIncludesStage(t *testing.T) {
	router := newStubRouter(stubRunner{err: &pipeline.Error{
		Kind:       pipeline.KindUpstreamRateLimited,
		Stage:      pipeline.StageGenerate,
		Message:    "Generation provider is rate limited",
		Context:    map[string]any{"retryAfter": 20},
		RetryAfter: 20 * time.Second,
		Err:        errors.New("hf: model loading"),
	}}, false)

	w := postGenerate(router)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, "20", w.Header().Get("Retry-After"))
	resp := decode(t, w)
	assert.Equal(t, "generate", resp["stage"])
	assert.Equal(t, float64(20), resp["retryAfter"])
	assert.Equal(t, "An error occurred while processing your request", resp["message"])
}

func TestGenerate_PaymentRejectedWithoutChallenge(t *testing.T) {
	router := newStubRouter(stubRunner{err: &pipeline.Error{
		Kind:    pipeline.KindPaymentRejected,
		Stage:   pipeline.StageAuthorize,
		Message: "Payment required",
	}}, false)

	w := postGenerate(router)

	assert.Equal(t, http.StatusPaymentRequired, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "Payment required", resp["error"])
	assert.NotContains(t, resp, "message")
}

func TestGenerate_InternalErrorMessageInDevelopment(t *testing.T) {
	cause := errors.New("database exploded")

	w := postGenerate(newStubRouter(stubRunner{err: cause}, true))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "database exploded", decode(t, w)["message"])

	w = postGenerate(newStubRouter(stubRunner{err: cause}, false))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "An error occurred while processing your request", decode(t, w)["message"])
}

func TestToggleFavorite(t *testing.T) {
	s := newTestServer(t)
	resp := s.generate(t, map[string]any{"prompt": "a red fox in snow", "type": "image", "walletAddress": testWallet})
	path := "/favorite/" + resp["transactionId"].(string)

	w := s.do(http.MethodPatch, path, map[string]any{"walletAddress": strings.ToUpper(testWallet[2:])}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPatch, path, map[string]any{"walletAddress": testWallet}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["isFavorite"])

	w = s.do(http.MethodPatch, path, map[string]any{"walletAddress": testWallet}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["isFavorite"])

	w = s.do(http.MethodPatch, path, map[string]any{"walletAddress": "0x9999999999999999999999999999999999999999"}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPatch, path, map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/favorite/"+uuid.NewString(), map[string]any{"walletAddress": testWallet}, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHistory_Limit(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < 3; i++ {
		s.generate(t, map[string]any{"prompt": "a red fox in snow", "type": "image", "walletAddress": testWallet})
	}

	w := s.do(http.MethodGet, "/history/"+testWallet+"?limit=2", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["count"])

	w = s.do(http.MethodGet, "/history/0x0000000000000000000000000000000000000000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, float64(0), resp["count"])
	assert.Equal(t, []any{}, resp["transactions"])
}

func TestStats(t *testing.T) {
	s := newTestServer(t)
	s.generate(t, map[string]any{"prompt": "a red fox in snow", "type": "image", "provider": "sd35", "walletAddress": testWallet})
	s.generate(t, map[string]any{"prompt": "waves at dusk", "type": "video", "provider": "veo3", "walletAddress": testWallet})

	w := s.do(http.MethodGet, "/stats/"+testWallet, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, strings.ToLower(testWallet), resp["walletAddress"])
	assert.Equal(t, float64(2), resp["totalGenerations"])
	assert.Equal(t, 1.0, resp["totalSpent"])
	assert.NotNil(t, resp["lastGeneration"])

	w = s.do(http.MethodGet, "/stats/0x0000000000000000000000000000000000000000", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp = decode(t, w)
	assert.Equal(t, float64(0), resp["totalGenerations"])
	assert.Nil(t, resp["lastGeneration"])
}

func TestShare_NotFound(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/share/"+uuid.NewString(), nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Generation not found")
}

func TestProviders(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/providers", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode(t, w)["providers"], 5)

	w = s.do(http.MethodGet, "/providers?type=video", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode(t, w)["providers"].([]any)
	require.Len(t, list, 2)
	assert.Equal(t, "veo3", list[0].(map[string]any)["id"])
	assert.Equal(t, 0.85, list[0].(map[string]any)["price"])
}

func TestPricing(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/pricing", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "USD", resp["currency"])
	assert.Equal(t, 0.15, resp["providers"].(map[string]any)["sd35"])
	image := resp["byType"].(map[string]any)["image"].(map[string]any)
	assert.Equal(t, 0.1, image["min"])
	assert.Equal(t, 0.2, image["max"])
}

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/health", handlers.HealthHandler)

	req, _ := http.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decode(t, w)
	assert.Equal(t, "ok", resp["status"])
	assert.Equal(t, "ultrapay-backend", resp["service"])
	assert.NotEmpty(t, resp["timestamp"])
}
