package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	segerrors "github.com/segmenta-io/segmenta/internal/errors"
	"github.com/segmenta-io/segmenta/internal/service"
	"github.com/segmenta-io/segmenta/internal/session"
)

func (s *Server) handleSearch(c echo.Context) error {
	var req service.SearchRequest
	if err := c.Bind(&req); err != nil {
		return segerrors.InvalidQuery("malformed request body")
	}
	resp, err := s.svc.Search(c.Request().Context(), req)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

type refineRequest struct {
	SessionID    string `json:"session_id"`
	Query        string `json:"query"`
	KeepSelected *bool  `json:"keep_selected,omitempty"`
}

func (s *Server) handleRefine(c echo.Context) error {
	var req refineRequest
	if err := c.Bind(&req); err != nil {
		return segerrors.InvalidQuery("malformed request body")
	}
	keep := req.KeepSelected == nil || *req.KeepSelected
	resp, err := s.svc.Refine(c.Request().Context(), req.SessionID, req.Query, keep)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) handleVariable(c echo.Context) error {
	v, err := s.svc.GetVariable(c.Param("code"))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, v)
}

func (s *Server) handleCategory(c echo.Context) error {
	topK := 0
	if raw := c.QueryParam("top_k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return segerrors.InvalidQuery("top_k must be an integer")
		}
		topK = n
	}
	vars, err := s.svc.ByCategory(c.Param("category"), topK)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{
		"category": c.Param("category"),
		"results":  vars,
		"count":    len(vars),
	})
}

func (s *Server) handleStats(c echo.Context) error {
	stats, err := s.svc.Stats()
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, stats)
}

type startSessionRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleStartSession(c echo.Context) error {
	var req startSessionRequest
	if err := c.Bind(&req); err != nil {
		return segerrors.InvalidQuery("malformed request body")
	}
	view, err := s.svc.StartSession(req.UserID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, view)
}

// Session workflow actions accepted by /api/nl/process.
const (
	actionSelectDataType   = "select_data_type"
	actionSubmitQuery      = "submit_query"
	actionRefineQuery      = "refine_query"
	actionConfirmVariables = "confirm_variables"
	actionComputeSegments  = "compute_segments"
	actionAcceptSegments   = "accept_segments"
	actionCancel           = "cancel"
)

type nlProcessRequest struct {
	SessionID string          `json:"session_id"`
	Action    string          `json:"action"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type nlProcessResponse struct {
	Session session.SessionView `json:"session"`
	Result  any                 `json:"result,omitempty"`
}

func (s *Server) handleNLProcess(c echo.Context) error {
	var req nlProcessRequest
	if err := c.Bind(&req); err != nil {
		return segerrors.InvalidQuery("malformed request body")
	}

	result, err := s.dispatchAction(c, req)
	if err != nil {
		return err
	}

	resp := nlProcessResponse{Result: result}
	if req.Action != actionCancel {
		view, err := s.svc.Session(req.SessionID)
		if err != nil {
			return err
		}
		resp.Session = view
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) dispatchAction(c echo.Context, req nlProcessRequest) (any, error) {
	ctx := c.Request().Context()

	switch req.Action {
	case actionSelectDataType:
		var p struct {
			Kind      string `json:"kind"`
			SubSource string `json:"sub_source,omitempty"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return nil, s.svc.SelectDataType(req.SessionID, p.Kind, p.SubSource)

	case actionSubmitQuery:
		var p struct {
			Query string `json:"query"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return s.svc.SubmitSessionQuery(ctx, req.SessionID, p.Query)

	case actionRefineQuery:
		var p struct {
			Query        string `json:"query"`
			KeepSelected *bool  `json:"keep_selected,omitempty"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		keep := p.KeepSelected == nil || *p.KeepSelected
		return s.svc.Refine(ctx, req.SessionID, p.Query, keep)

	case actionConfirmVariables:
		var p struct {
			Codes []string `json:"codes"`
		}
		if err := decodePayload(req.Payload, &p); err != nil {
			return nil, err
		}
		return nil, s.svc.ConfirmVariables(req.SessionID, p.Codes)

	case actionComputeSegments:
		var p struct {
			K int `json:"k,omitempty"`
		}
		if len(req.Payload) > 0 {
			if err := decodePayload(req.Payload, &p); err != nil {
				return nil, err
			}
		}
		return s.svc.ComputeSegments(ctx, req.SessionID, p.K)

	case actionAcceptSegments:
		return nil, s.svc.AcceptSegments(req.SessionID)

	case actionCancel:
		return nil, s.svc.CancelSession(req.SessionID)

	default:
		return nil, segerrors.InvalidQuery("unknown action " + strconv.Quote(req.Action))
	}
}

func decodePayload(raw json.RawMessage, into any) error {
	if len(raw) == 0 {
		return segerrors.InvalidQuery("missing action payload")
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return segerrors.InvalidQuery("malformed action payload")
	}
	return nil
}

func (s *Server) handleMigrationStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.svc.RouterStatus())
}

type migrationTestRequest struct {
	UserID string `json:"user_id"`
}

func (s *Server) handleMigrationTest(c echo.Context) error {
	var req migrationTestRequest
	if err := c.Bind(&req); err != nil {
		return segerrors.InvalidQuery("malformed request body")
	}
	return c.JSON(http.StatusOK, s.svc.RouterTest(req.UserID))
}

func (s *Server) handleHealth(c echo.Context) error {
	ready := s.svc.Ready()
	status := http.StatusOK
	state := "ok"
	if !ready {
		status = http.StatusServiceUnavailable
		state = "loading"
	}
	return c.JSON(status, map[string]any{
		"status":             state,
		"catalog_loaded":     ready,
		"semantic_available": s.svc.SemanticAvailable(),
	})
}
