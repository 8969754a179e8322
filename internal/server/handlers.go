// Request handlers for the research store API.

package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/inquiry-labs/researchdb/internal/docstore"
	"github.com/inquiry-labs/researchdb/internal/gitlog"
	"github.com/inquiry-labs/researchdb/internal/storage"
)

// collectionRequest is embedded by every collection-scoped request.
type collectionRequest struct {
	Collection string `path:"collection"`
}

func (r *collectionRequest) Validate() error {
	if r.Collection == "" {
		return errCollectionRequired
	}
	return nil
}

func (s *Server) collection(name string) (storage.Collection, error) {
	c := s.research.Collection(name)
	if c == nil {
		return nil, Errorf(http.StatusNotFound, "unknown collection %q", name)
	}
	return c, nil
}

type healthRequest struct{}

func (r *healthRequest) Validate() error { return nil }

type healthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

func (s *Server) health(_ context.Context, _ *healthRequest) (*healthResponse, error) {
	return &healthResponse{Status: "ok", Version: s.version}, nil
}

type newSessionRequest struct {
	Parent string `json:"parent,omitempty"`
}

func (r *newSessionRequest) Validate() error { return nil }

type newSessionResponse struct {
	SessionID string `json:"sessionId"`
}

func (s *Server) newSession(_ context.Context, req *newSessionRequest) (*newSessionResponse, error) {
	return &newSessionResponse{SessionID: storage.NewSessionID(req.Parent)}, nil
}

type listSessionsRequest struct {
	collectionRequest
}

type listSessionsResponse struct {
	Sessions []string `json:"sessions"`
}

func (s *Server) listSessions(_ context.Context, req *listSessionsRequest) (*listSessionsResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	sessions, err := c.Sessions()
	if err != nil {
		return nil, err
	}
	return &listSessionsResponse{Sessions: sessions}, nil
}

type getSessionRequest struct {
	collectionRequest
	SessionID string `path:"session"`
}

func (r *getSessionRequest) Validate() error {
	if err := r.collectionRequest.Validate(); err != nil {
		return err
	}
	if r.SessionID == "" {
		return errSessionRequired
	}
	return nil
}

type documentsResponse struct {
	Documents any `json:"documents"`
}

func (s *Server) getSession(_ context.Context, req *getSessionRequest) (*documentsResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	docs, err := c.LoadSessionRaw(req.SessionID)
	if err != nil {
		return nil, err
	}
	return &documentsResponse{Documents: docs}, nil
}

type putSessionRequest struct {
	collectionRequest
	SessionID string            `path:"session"`
	Documents []json.RawMessage `json:"documents"`
}

func (r *putSessionRequest) Validate() error {
	if err := r.collectionRequest.Validate(); err != nil {
		return err
	}
	if r.SessionID == "" {
		return errSessionRequired
	}
	return nil
}

func (s *Server) putSession(_ context.Context, req *putSessionRequest) (*documentsResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	for _, raw := range req.Documents {
		if err := s.schemas.ValidateRaw(req.Collection, raw); err != nil {
			return nil, Errorf(http.StatusBadRequest, "%s", err)
		}
	}
	docs, err := c.SaveSessionRaw(req.SessionID, req.Documents)
	if err != nil {
		return nil, Errorf(http.StatusBadRequest, "%s", err)
	}
	return &documentsResponse{Documents: docs}, nil
}

type saveDocumentRequest struct {
	collectionRequest
	Document json.RawMessage `json:"document"`
}

func (r *saveDocumentRequest) Validate() error {
	if err := r.collectionRequest.Validate(); err != nil {
		return err
	}
	if len(r.Document) == 0 {
		return errDocumentRequired
	}
	return nil
}

type documentResponse struct {
	Document any `json:"document"`
}

func (s *Server) saveDocument(_ context.Context, req *saveDocumentRequest) (*documentResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	if err := s.schemas.ValidateRaw(req.Collection, req.Document); err != nil {
		return nil, Errorf(http.StatusBadRequest, "%s", err)
	}
	doc, err := c.SaveRaw(req.Document)
	if err != nil {
		return nil, Errorf(http.StatusBadRequest, "%s", err)
	}
	return &documentResponse{Document: doc}, nil
}

type documentIDRequest struct {
	collectionRequest
	ID string `path:"id"`
}

func (r *documentIDRequest) Validate() error {
	if err := r.collectionRequest.Validate(); err != nil {
		return err
	}
	if r.ID == "" {
		return errIDRequired
	}
	return nil
}

func (s *Server) getDocument(_ context.Context, req *documentIDRequest) (*documentResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	doc, found, err := c.GetByIDRaw(req.ID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, Errorf(http.StatusNotFound, "document %q not found", req.ID)
	}
	return &documentResponse{Document: doc}, nil
}

type deleteResponse struct {
	Deleted bool `json:"deleted"`
}

func (s *Server) deleteDocument(_ context.Context, req *documentIDRequest) (*deleteResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	deleted, err := c.Delete(req.ID)
	if err != nil {
		return nil, err
	}
	return &deleteResponse{Deleted: deleted}, nil
}

type queryRequest struct {
	collectionRequest
	Status  string `query:"status"`
	Kind    string `query:"kind"`
	Related string `query:"related"`
}

func (s *Server) query(_ context.Context, req *queryRequest) (*documentsResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	docs, err := c.FindRaw(req.Status, req.Kind, req.Related)
	if err != nil {
		return nil, err
	}
	return &documentsResponse{Documents: docs}, nil
}

type statsResponse struct {
	Collection string          `json:"collection"`
	Stats      *docstore.Stats `json:"stats"`
}

func (s *Server) stats(_ context.Context, req *listSessionsRequest) (*statsResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	st, err := c.Stats()
	if err != nil {
		return nil, err
	}
	return &statsResponse{Collection: req.Collection, Stats: st}, nil
}

type unaddressedRequest struct {
	collectionRequest
	Target string `query:"target"`
}

func (r *unaddressedRequest) Validate() error {
	if err := r.collectionRequest.Validate(); err != nil {
		return err
	}
	if r.Target == "" {
		return errTargetRequired
	}
	return nil
}

type unaddressedResponse struct {
	Target string `json:"target"`
	Count  int    `json:"count"`
}

func (s *Server) unaddressed(_ context.Context, req *unaddressedRequest) (*unaddressedResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	n, err := c.UnaddressedFor(req.Target)
	if err != nil {
		return nil, err
	}
	return &unaddressedResponse{Target: req.Target, Count: n}, nil
}

type rebuildResponse struct {
	Collection string             `json:"collection"`
	Entries    int                `json:"entries"`
	Warnings   []docstore.Warning `json:"warnings,omitempty"`
}

func (s *Server) rebuild(_ context.Context, req *listSessionsRequest) (*rebuildResponse, error) {
	c, err := s.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	idx, err := c.RebuildIndex()
	if err != nil {
		return nil, err
	}
	return &rebuildResponse{Collection: req.Collection, Entries: len(idx.Entries), Warnings: idx.Warnings}, nil
}

type rebuildAllRequest struct{}

func (r *rebuildAllRequest) Validate() error { return nil }

type rebuildAllResponse struct {
	Collections []rebuildResponse `json:"collections"`
}

func (s *Server) rebuildAll(_ context.Context, _ *rebuildAllRequest) (*rebuildAllResponse, error) {
	indexes, err := s.research.RebuildAll()
	if err != nil {
		return nil, err
	}
	out := &rebuildAllResponse{}
	for _, name := range s.research.CollectionNames() {
		idx, ok := indexes[name]
		if !ok {
			continue
		}
		out.Collections = append(out.Collections, rebuildResponse{
			Collection: name,
			Entries:    len(idx.Entries),
			Warnings:   idx.Warnings,
		})
	}
	return out, nil
}

type reportRequest struct{}

func (r *reportRequest) Validate() error { return nil }

type reportResponse struct {
	Collections map[string]*docstore.Stats `json:"collections"`
}

func (s *Server) report(ctx context.Context, _ *reportRequest) (*reportResponse, error) {
	stats, err := s.research.Report(ctx)
	if err != nil {
		return nil, err
	}
	return &reportResponse{Collections: stats}, nil
}

type schemaRequest struct {
	collectionRequest
}

type schemaResponse struct {
	Collection string          `json:"collection"`
	Schema     json.RawMessage `json:"schema"`
}

func (s *Server) schema(_ context.Context, req *schemaRequest) (*schemaResponse, error) {
	raw, ok := s.schemas.SchemaJSON(req.Collection)
	if !ok {
		return nil, Errorf(http.StatusNotFound, "unknown collection %q", req.Collection)
	}
	return &schemaResponse{Collection: req.Collection, Schema: raw}, nil
}

type historyRequest struct {
	Limit int `query:"limit"`
}

func (r *historyRequest) Validate() error { return nil }

type historyResponse struct {
	Commits []*gitlog.Commit `json:"commits"`
}

func (s *Server) history(ctx context.Context, req *historyRequest) (*historyResponse, error) {
	if s.git == nil {
		return nil, Errorf(http.StatusNotFound, "versioning is disabled")
	}
	commits, err := s.git.History(ctx, req.Limit)
	if err != nil {
		return nil, err
	}
	return &historyResponse{Commits: commits}, nil
}

var (
	errCollectionRequired = errors.New("collection is required")
	errSessionRequired    = errors.New("session id is required")
	errDocumentRequired   = errors.New("document is required")
	errIDRequired         = errors.New("document id is required")
	errTargetRequired     = errors.New("target query parameter is required")
)
