package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/agenthands/expand/internal/core"
	"github.com/agenthands/expand/internal/core/aggregate"
	"github.com/agenthands/expand/internal/core/model"
	"github.com/agenthands/expand/internal/core/querier"
	"github.com/agenthands/expand/internal/core/querygraph"
	"github.com/agenthands/expand/internal/core/response"
	"github.com/agenthands/expand/internal/errs"
	"github.com/agenthands/expand/internal/logger"
)

type Server struct {
	Expander *core.Expander
	log      *logger.Logger
}

func NewServer(e *core.Expander, log *logger.Logger) *Server {
	if log == nil {
		log = logger.NewNop()
	}
	return &Server{Expander: e, log: log}
}

func (s *Server) SetupRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(RequestLogger(s.log))
	r.Use(Metrics())

	r.GET("/healthz", s.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/kps", s.ListKPs)

	r.POST("/one_hop", s.OneHop)
	r.POST("/single_node", s.SingleNode)
	r.POST("/query_graph/check", s.Check)

	return r
}

type OneHopRequest struct {
	// KP names a single provider; KPs asks several at once. Both empty
	// means every configured KP.
	KP         string           `json:"kp"`
	KPs        []string         `json:"kps"`
	QueryGraph model.QueryGraph `json:"query_graph"`
}

type AnswerResponse struct {
	ID             string               `json:"id"`
	Status         string               `json:"status"`
	ErrorCode      string               `json:"error_code,omitempty"`
	KnowledgeGraph model.KnowledgeGraph `json:"knowledge_graph"`
	EdgeToNodes    querier.BindingMap   `json:"edge_to_nodes,omitempty"`
	Logs           []response.Message   `json:"logs"`
}

type CheckRequest struct {
	QueryGraph     model.QueryGraph     `json:"query_graph"`
	KnowledgeGraph model.KnowledgeGraph `json:"knowledge_graph"`
}

func (s *Server) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) ListKPs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"kps": s.Expander.KPs()})
}

func (s *Server) OneHop(c *gin.Context) {
	var req OneHopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	resp := response.New(s.log)
	var (
		kg       *aggregate.KnowledgeGraph
		bindings querier.BindingMap
		err      error
	)
	if req.KP != "" {
		kg, bindings, err = s.Expander.AnswerOneHop(c.Request.Context(), req.KP, req.QueryGraph, resp)
	} else {
		kg, bindings, err = s.Expander.AnswerOneHopAcrossKPs(c.Request.Context(), req.KPs, req.QueryGraph, resp)
	}
	s.answer(c, resp, kg, bindings, err)
}

func (s *Server) SingleNode(c *gin.Context) {
	var req OneHopRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if req.KP == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "kp is required"})
		return
	}

	resp := response.New(s.log)
	kg, err := s.Expander.AnswerSingleNode(c.Request.Context(), req.KP, req.QueryGraph, resp)
	s.answer(c, resp, kg, nil, err)
}

func (s *Server) Check(c *gin.Context) {
	var req CheckRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	c.JSON(http.StatusOK, querygraph.Check(req.QueryGraph, aggregate.FromFlat(req.KnowledgeGraph)))
}

func (s *Server) answer(c *gin.Context, resp *response.Response, kg *aggregate.KnowledgeGraph, bindings querier.BindingMap, err error) {
	status := http.StatusOK
	if err != nil {
		kind, _ := errs.KindOf(err)
		switch kind {
		case errs.InvalidQuery:
			status = http.StatusBadRequest
		case errs.UnsupportedQueryForKP:
			status = http.StatusUnprocessableEntity
		default:
			s.log.Error("one-hop query failed", "request_id", resp.ID, "error", err)
			status = http.StatusInternalServerError
		}
	}
	c.JSON(status, NewAnswer(resp, kg, bindings))
}

// NewAnswer renders an aggregate and its response log in wire form.
func NewAnswer(resp *response.Response, kg *aggregate.KnowledgeGraph, bindings querier.BindingMap) AnswerResponse {
	if kg == nil {
		kg = aggregate.New()
	}
	return AnswerResponse{
		ID:             resp.ID,
		Status:         resp.Status(),
		ErrorCode:      resp.ErrorCode(),
		KnowledgeGraph: kg.ToFlat(),
		EdgeToNodes:    bindings,
		Logs:           resp.Messages(),
	}
}
