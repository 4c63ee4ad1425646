package web

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/swarmlab/hivehub/internal/room"
)

func (s *Server) registerAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/state", s.getState)
	mux.HandleFunc("GET /api/events", s.getEvents)
	mux.HandleFunc("GET /api/timeline", s.getTimeline)

	mux.HandleFunc("POST /api/claim_task", s.claimTask)
	mux.HandleFunc("POST /api/release_task", s.releaseTask)
	mux.HandleFunc("POST /api/lock_file", s.lockFile)
	mux.HandleFunc("POST /api/unlock_file", s.unlockFile)

	mux.HandleFunc("POST /api/announce_task", s.announceTask)
	mux.HandleFunc("POST /api/bid_task", s.bidTask)
	mux.HandleFunc("POST /api/resolve_auction", s.resolveAuction)

	mux.HandleFunc("POST /api/authorize_mcps", s.authorizeMcps)
	mux.HandleFunc("POST /api/broadcast", s.broadcastChat)

	mux.HandleFunc("POST /api/freeze_agent", s.freezeAgent)
	mux.HandleFunc("POST /api/unfreeze_agent", s.unfreezeAgent)
	mux.HandleFunc("GET /api/check_frozen", s.checkFrozen)
	mux.HandleFunc("POST /api/report_activity", s.reportActivity)

	mux.HandleFunc("GET /api/pulse", s.getPulse)
	mux.HandleFunc("POST /api/pulse", s.updatePulse)

	mux.HandleFunc("POST /api/urgent", s.triggerUrgent)
	mux.HandleFunc("GET /api/urgent", s.getUrgent)
	mux.HandleFunc("POST /api/urgent/resolve", s.resolveUrgent)

	mux.HandleFunc("POST /api/knowledge", s.addKnowledge)
	mux.HandleFunc("GET /api/knowledge", s.searchKnowledge)

	mux.HandleFunc("GET /api/stats", s.getStats)
	mux.HandleFunc("GET /api/agents", s.getAgents)
	mux.HandleFunc("GET /api/tasks", s.getTasks)

	mux.HandleFunc("POST /api/stop", s.stopSwarm)
	mux.HandleFunc("POST /api/resume", s.resumeSwarm)
}

func (s *Server) getState(w http.ResponseWriter, r *http.Request) {
	rm := s.room(r)
	leader, err := rm.Leader()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	mcps, err := rm.AuthorizedMcps()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]any{"leader": leader, "authorizedMcps": mcps})
}

func (s *Server) getEvents(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	events, err := s.room(r).EventsSince(since)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []room.Event{}
	}
	jsonResponse(w, events)
}

func (s *Server) getTimeline(w http.ResponseWriter, r *http.Request) {
	since, _ := strconv.ParseInt(r.URL.Query().Get("since"), 10, 64)
	items, err := s.room(r).Timeline(since)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if items == nil {
		items = []room.TimelineItem{}
	}
	jsonResponse(w, items)
}

func (s *Server) claimTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"taskId"`
		Agent  string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" || body.Agent == "" {
		jsonError(w, "taskId and agent are required", http.StatusBadRequest)
		return
	}
	res, err := s.room(r).ClaimTask(body.TaskID, body.Agent)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, res)
}

func (s *Server) releaseTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"taskId"`
		Agent  string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" || body.Agent == "" {
		jsonError(w, "taskId and agent are required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).ReleaseTask(body.TaskID, body.Agent); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) lockFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path      string `json:"path"`
		Agent     string `json:"agent"`
		Exclusive bool   `json:"exclusive"`
		TtlMs     int64  `json:"ttlMs"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Path == "" || body.Agent == "" {
		jsonError(w, "path and agent are required", http.StatusBadRequest)
		return
	}
	res, err := s.room(r).LockFile(body.Path, body.Agent, body.Exclusive, body.TtlMs)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, res)
}

func (s *Server) unlockFile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Path  string `json:"path"`
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Path == "" || body.Agent == "" {
		jsonError(w, "path and agent are required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).UnlockFile(body.Path, body.Agent); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) announceTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID               string   `json:"taskId"`
		Title                string   `json:"title"`
		RequiredCapabilities []string `json:"requiredCapabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" {
		jsonError(w, "taskId is required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).AnnounceTask(body.TaskID, body.Title, body.RequiredCapabilities); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) bidTask(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID       string   `json:"taskId"`
		Agent        string   `json:"agent"`
		Capabilities []string `json:"capabilities"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" || body.Agent == "" {
		jsonError(w, "taskId and agent are required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).BidTask(body.TaskID, body.Agent, body.Capabilities); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) resolveAuction(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TaskID string `json:"taskId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.TaskID == "" {
		jsonError(w, "taskId is required", http.StatusBadRequest)
		return
	}
	res, err := s.room(r).ResolveAuction(body.TaskID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// res is null when there were no bids
	jsonResponse(w, res)
}

func (s *Server) authorizeMcps(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mcps []string `json:"mcps"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if err := s.room(r).AuthorizeMcps(body.Mcps); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) broadcastChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		From    string `json:"from"`
		Message string `json:"message"`
		Channel string `json:"channel"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Message == "" {
		jsonError(w, "message is required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).BroadcastChat(body.From, body.Message, body.Channel); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) freezeAgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agent  string `json:"agent"`
		Reason string `json:"reason"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Agent == "" {
		jsonError(w, "agent is required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).FreezeAgent(body.Agent, body.Reason); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) unfreezeAgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agent string `json:"agent"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Agent == "" {
		jsonError(w, "agent is required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).UnfreezeAgent(body.Agent); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) checkFrozen(w http.ResponseWriter, r *http.Request) {
	agent := r.URL.Query().Get("agent")
	if agent == "" {
		jsonError(w, "agent is required", http.StatusBadRequest)
		return
	}
	frozen, err := s.room(r).IsFrozen(agent)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"frozen": frozen})
}

func (s *Server) reportActivity(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Agent   string `json:"agent"`
		Actions int    `json:"actions"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Agent == "" {
		jsonError(w, "agent is required", http.StatusBadRequest)
		return
	}
	anomaly, err := s.room(r).ReportActivity(body.Agent, body.Actions)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"anomaly": anomaly})
}

func (s *Server) getPulse(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.room(r).SwarmPulse()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snapshot.Agents == nil {
		snapshot.Agents = []room.Pulse{}
	}
	jsonResponse(w, snapshot)
}

func (s *Server) updatePulse(w http.ResponseWriter, r *http.Request) {
	var p room.Pulse
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if p.Agent == "" {
		jsonError(w, "agent is required", http.StatusBadRequest)
		return
	}
	if err := s.room(r).UpdatePulse(p); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) triggerUrgent(w http.ResponseWriter, r *http.Request) {
	var in room.UrgentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if in.Title == "" && in.Reason == "" {
		jsonError(w, "title or reason is required", http.StatusBadRequest)
		return
	}
	urgent, err := s.room(r).TriggerUrgent(in)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, urgent)
}

func (s *Server) getUrgent(w http.ResponseWriter, r *http.Request) {
	urgent, err := s.room(r).ActiveUrgent()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	// null when no urgent is active
	jsonResponse(w, urgent)
}

func (s *Server) resolveUrgent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.ID == "" {
		jsonError(w, "id is required", http.StatusBadRequest)
		return
	}
	ok, err := s.room(r).ResolveUrgent(body.ID)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": ok})
}

func (s *Server) addKnowledge(w http.ResponseWriter, r *http.Request) {
	var entry room.Knowledge
	if err := json.NewDecoder(r.Body).Decode(&entry); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if entry.Title == "" {
		jsonError(w, "title is required", http.StatusBadRequest)
		return
	}
	id, err := s.room(r).AddKnowledge(entry)
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"id": id})
}

func (s *Server) searchKnowledge(w http.ResponseWriter, r *http.Request) {
	entries, err := s.room(r).SearchKnowledge(r.URL.Query().Get("q"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []room.Knowledge{}
	}
	jsonResponse(w, entries)
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.room(r).Stats()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, stats)
}

func (s *Server) getAgents(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.room(r).SwarmPulse()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if snapshot.Agents == nil {
		snapshot.Agents = []room.Pulse{}
	}
	jsonResponse(w, snapshot.Agents)
}

func (s *Server) getTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := s.room(r).TaskList()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if tasks == nil {
		tasks = []room.TaskInfo{}
	}
	jsonResponse(w, tasks)
}

func (s *Server) stopSwarm(w http.ResponseWriter, r *http.Request) {
	if err := s.room(r).SetSwarmStopped(true); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}

func (s *Server) resumeSwarm(w http.ResponseWriter, r *http.Request) {
	if err := s.room(r).SetSwarmStopped(false); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]bool{"ok": true})
}
