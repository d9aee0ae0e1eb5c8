package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/contact-harvester/internal/collector"
	"github.com/JakeFAU/contact-harvester/internal/harvest"
	"github.com/JakeFAU/contact-harvester/internal/progress"
	"github.com/JakeFAU/contact-harvester/internal/search"
)

const runIDHeader = "X-Run-ID"

// collectStream handles GET /v1/collect/stream?keyword=a | b&city=&maxResults=.
// The run's progress is streamed as server-sent events; contacts are saved
// when it completes. Disconnecting cancels the run.
func (s *Server) collectStream(w http.ResponseWriter, r *http.Request) {
	req, err := s.parseCollectRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.streamRun(w, r, progress.FlowCollect, func(ctx context.Context, run *progress.Run) {
		found, err := s.svc.Collect(ctx, req, run)
		if err != nil {
			s.logger.Error("collection failed", zap.String("run_id", run.ID().String()), zap.Error(err))
			return
		}
		s.logger.Info("collection finished",
			zap.String("run_id", run.ID().String()),
			zap.Int("found", len(found)),
		)
	})
}

func (s *Server) parseCollectRequest(r *http.Request) (collector.Request, error) {
	q := r.URL.Query()
	raw := q.Get("keyword")
	if strings.TrimSpace(raw) == "" && len(s.cfg.Search.Terms) > 0 {
		raw = s.cfg.Search.Terms[0]
	}
	keywords := search.SplitKeywords(raw)
	if len(keywords) == 0 {
		return collector.Request{}, errors.New("keyword is required")
	}
	req := collector.Request{Keywords: keywords, City: strings.TrimSpace(q.Get("city"))}
	if v := q.Get("maxResults"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return collector.Request{}, fmt.Errorf("maxResults must be a positive integer")
		}
		req.MaxResults = n
	}
	return req, nil
}

type sendRequest struct {
	Emails  []string `json:"emails"`
	Keyword string   `json:"keyword"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

// sendStream handles POST /v1/send/stream. It dispatches to the selected
// pending contacts (all of them when emails is empty) and streams progress;
// delivered contacts move to the sent partition.
func (s *Server) sendStream(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	msg, err := s.svc.ComposeMessage(req.Subject, req.HTML, req.Text)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	pending, err := s.svc.Store().LoadPending(r.Context())
	if err != nil {
		s.logger.Error("load pending contacts failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load contacts")
		return
	}
	contacts := harvest.FilterContacts(pending, req.Keyword, req.Emails)

	s.streamRun(w, r, progress.FlowDispatch, func(ctx context.Context, run *progress.Run) {
		result, err := s.svc.Send(ctx, contacts, msg, s.cfg.Dispatch.Delay, run)
		if err != nil {
			s.logger.Error("dispatch failed", zap.String("run_id", run.ID().String()), zap.Error(err))
			return
		}
		s.logger.Info("dispatch finished",
			zap.String("run_id", run.ID().String()),
			zap.Int("sent", result.Sent),
			zap.Int("failed", result.Failed),
			zap.Bool("canceled", result.Canceled),
		)
	})
}

// streamRun registers a run, subscribes to its events, starts work in the
// background, and relays the events until the terminal one.
func (s *Server) streamRun(
	w http.ResponseWriter,
	r *http.Request,
	flow progress.Flow,
	work func(ctx context.Context, run *progress.Run),
) {
	run := s.svc.StartRun(flow)
	events, detach := s.svc.Streams().Subscribe(run.ID())
	defer detach()

	w.Header().Set(runIDHeader, run.ID().String())
	flusher, ok := startStream(w)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	ctx, done := s.runs.Start(r.Context(), run.ID())
	workDone := make(chan struct{})
	go func() {
		defer close(workDone)
		defer done()
		work(ctx, run)
	}()

	if err := pump(r.Context(), w, flusher, events, workDone, s.streamTail); err != nil && !errors.Is(err, context.Canceled) {
		s.logger.Warn("event stream ended early", zap.String("run_id", run.ID().String()), zap.Error(err))
	}
}
