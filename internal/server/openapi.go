package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/playperu/blindtasting/internal/store"
)

// HealthResponse documents the /healthz body: one entry per dependency.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type sessionPath struct {
	ID string `path:"id" format:"uuid"`
}

type hostPinParam struct {
	ID      string `path:"id" format:"uuid"`
	HostPin string `header:"X-Host-Pin" description:"Host PIN, required when the session was created with one."`
}

type commandInput struct {
	ID      string          `path:"id" format:"uuid"`
	HostPin string          `header:"X-Host-Pin" description:"Host PIN, required when the session was created with one."`
	Type    string          `json:"type" required:"true"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "Blind Tasting Room API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Backend API for the blind wine tasting party game.")

	// GET /healthz
	getHealthz, _ := r.NewOperationContext(http.MethodGet, "/healthz")
	getHealthz.SetSummary("Health check")
	getHealthz.SetDescription("Returns the health status of backend dependencies.")
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getHealthz.AddRespStructure(HealthResponse{}, openapi.WithHTTPStatus(http.StatusServiceUnavailable))
	_ = r.AddOperation(getHealthz)

	// POST /api/sessions
	createSession, _ := r.NewOperationContext(http.MethodPost, "/api/sessions")
	createSession.SetSummary("Create session")
	createSession.SetDescription("Starts a new tasting session in the setup phase. An optional host PIN protects every later change.")
	createSession.AddReqStructure(CreateSessionRequest{})
	createSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusCreated))
	createSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	_ = r.AddOperation(createSession)

	// GET /api/sessions
	listSessions, _ := r.NewOperationContext(http.MethodGet, "/api/sessions")
	listSessions.SetSummary("List sessions")
	listSessions.SetDescription("Returns all sessions, most recently changed first.")
	listSessions.AddRespStructure([]store.Summary{}, openapi.WithHTTPStatus(http.StatusOK))
	_ = r.AddOperation(listSessions)

	// GET /api/sessions/{id}
	getSession, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}")
	getSession.SetSummary("Get session")
	getSession.SetDescription("Returns the current state snapshot.")
	getSession.AddReqStructure(sessionPath{})
	getSession.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getSession)

	// DELETE /api/sessions/{id}
	deleteSession, _ := r.NewOperationContext(http.MethodDelete, "/api/sessions/{id}")
	deleteSession.SetSummary("Delete session")
	deleteSession.AddReqStructure(hostPinParam{})
	deleteSession.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusNoContent))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	deleteSession.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(deleteSession)

	// POST /api/sessions/{id}/commands
	postCommand, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/commands")
	postCommand.SetSummary("Apply command")
	postCommand.SetDescription("Applies one of SETUP_GAME, RECORD_GUESS, SUBMIT_ROUND, NEXT_ROUND, " +
		"FINAL_REVEAL, RECORD_SCORES, START_TIE_BREAKER or FINAL_SCORE and returns the new state.")
	postCommand.AddReqStructure(commandInput{})
	postCommand.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postCommand.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusBadRequest))
	postCommand.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	postCommand.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	postCommand.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postCommand.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusUnprocessableEntity))
	_ = r.AddOperation(postCommand)

	// POST /api/sessions/{id}/undo
	postUndo, _ := r.NewOperationContext(http.MethodPost, "/api/sessions/{id}/undo")
	postUndo.SetSummary("Undo last command")
	postUndo.AddReqStructure(hostPinParam{})
	postUndo.AddRespStructure(SessionResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	postUndo.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusConflict))
	postUndo.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusForbidden))
	_ = r.AddOperation(postUndo)

	// GET /api/sessions/{id}/history
	getHistory, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/history")
	getHistory.SetSummary("Command history")
	getHistory.SetDescription("Lists applied commands, oldest first.")
	getHistory.AddReqStructure(sessionPath{})
	getHistory.AddRespStructure([]store.HistoryEntry{}, openapi.WithHTTPStatus(http.StatusOK))
	getHistory.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getHistory)

	// GET /api/sessions/{id}/leaders
	getLeaders, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/leaders")
	getLeaders.SetSummary("Leaders")
	getLeaders.SetDescription("Returns the players sharing the top score and whether they are tied.")
	getLeaders.AddReqStructure(sessionPath{})
	getLeaders.AddRespStructure(LeadersResponse{}, openapi.WithHTTPStatus(http.StatusOK))
	getLeaders.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(http.StatusNotFound))
	_ = r.AddOperation(getLeaders)

	// GET /api/sessions/{id}/events
	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events: a snapshot event first, then a change event per applied command.")
	getEvents.AddReqStructure(sessionPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	// GET /api/sessions/{id}/ws
	getWS, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/ws")
	getWS.SetSummary("WebSocket command channel")
	getWS.SetDescription("Upgrades to a WebSocket. Send WSCommand messages; each is answered with a WSReply. " +
		"Session events arrive as WSReply.event until the session is deleted.")
	getWS.AddReqStructure(sessionPath{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
