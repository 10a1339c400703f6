package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/psds-microservice/live-pk-service/internal/credential"
	"github.com/psds-microservice/live-pk-service/internal/model"
	"github.com/psds-microservice/live-pk-service/internal/service"
	"go.uber.org/zap/zaptest"
)

type testServer struct {
	engine   *gin.Engine
	registry *service.LiveRegistry
	hub      *service.FanoutHub
	pk       *service.PKManager
}

func newTestServer(t *testing.T, signer *credential.Signer) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	store := service.NewSessionStore()
	registry := service.NewLiveRegistry(store, 90*time.Second, service.DefaultFallback(), log)
	hub := service.NewFanoutHub(service.HubOptions{SendBuffer: 16}, nil, nil, log)
	pk := service.NewPKManager(registry, service.NewPairingMap(store), hub, service.PKConfig{
		DefaultDuration: 180 * time.Second,
		MinDuration:     30 * time.Second,
		MaxDuration:     time.Hour,
		InviteTTL:       time.Minute,
		ResultTTL:       10 * time.Minute,
	}, nil, log)
	t.Cleanup(pk.Close)

	sessions := NewSessionHandler(registry, pk, signer, "ws://live.test", log)
	pkh := NewPKHandler(pk)
	tokens := NewTokenHandler(signer)
	ws := NewStreamWSHandler(hub, registry, log)

	r := gin.New()
	r.POST("/lives", sessions.RegisterSession)
	r.GET("/lives", sessions.ListSessions)
	r.GET("/lives/:id", sessions.GetSession)
	r.DELETE("/lives/:id", sessions.RemoveSession)
	r.POST("/lives/:id/heartbeat", sessions.Heartbeat)
	r.GET("/lives/:id/pk", sessions.GetSessionPK)
	r.POST("/pk/invite", pkh.Invite)
	r.GET("/pk/:id", pkh.Get)
	r.POST("/pk/:id/accept", pkh.Accept)
	r.POST("/pk/:id/reject", pkh.Reject)
	r.POST("/pk/:id/score", pkh.Score)
	r.POST("/pk/:id/end", pkh.End)
	r.GET("/generate-token", tokens.GenerateToken)
	r.GET("/ws", ws.ServeWS)

	return &testServer{engine: r, registry: registry, hub: hub, pk: pk}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

func registerReq(id string) model.RegisterSessionRequest {
	return model.RegisterSessionRequest{
		ID:                  id,
		OwnerID:             "owner-" + id,
		DisplayName:         "Live " + id,
		ChannelName:         "channel-" + id,
		OwnerMediaSubjectID: 42,
	}
}

func (s *testServer) register(t *testing.T, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if w := s.do(t, http.MethodPost, "/lives", registerReq(id)); w.Code != http.StatusCreated {
			t.Fatalf("register %s: %d %s", id, w.Code, w.Body.String())
		}
	}
}

func (s *testServer) invite(t *testing.T, a, b string) model.PKPairing {
	t.Helper()
	w := s.do(t, http.MethodPost, "/pk/invite", model.InviteRequest{InitiatorSessionID: a, TargetSessionID: b})
	if w.Code != http.StatusCreated {
		t.Fatalf("invite: %d %s", w.Code, w.Body.String())
	}
	return decode[model.PKPairing](t, w)
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func assertError(t *testing.T, w *httptest.ResponseRecorder, code int, kind string) {
	t.Helper()
	if w.Code != code {
		t.Fatalf("status = %d, want %d (%s)", w.Code, code, w.Body.String())
	}
	if got := decode[errorBody](t, w).Error; got != kind {
		t.Errorf("error kind = %q, want %q", got, kind)
	}
}
