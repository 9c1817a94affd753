package server

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/wesleyorama2/loadsim/internal/config"
	"github.com/wesleyorama2/loadsim/internal/loader"
)

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"configured": s.loads.Config() != nil,
	})
}

// load runs one load with the request body as partial configuration. Once a
// configuration is cached the body is not read.
func (s *Server) load(c *gin.Context) {
	var input map[string]interface{}
	if s.loads.Config() == nil {
		var err error
		input, err = s.readInput(c)
		if err != nil {
			s.fail(c, http.StatusBadRequest, err)
			return
		}
	}

	result, err := s.loads.Load(c.Request.Context(), input)
	if err != nil {
		status := http.StatusInternalServerError
		if loader.IsConfigError(err) {
			status = http.StatusBadRequest
		}
		s.fail(c, status, err)
		return
	}

	c.Data(http.StatusOK, "text/plain; charset=utf-8", []byte(result.Payload))
}

// readInput decodes the request body. YAML is accepted when the content type
// says so, JSON otherwise. An empty body is an empty document.
func (s *Server) readInput(c *gin.Context) (map[string]interface{}, error) {
	if c.Request.Body == nil || c.Request.Method == http.MethodGet {
		return map[string]interface{}{}, nil
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, errors.New("request body too large")
		}
		return nil, err
	}

	name := "body.json"
	if strings.Contains(c.ContentType(), "yaml") {
		name = "body.yaml"
	}
	return config.ParseDocument(body, name)
}

func (s *Server) fail(c *gin.Context, status int, err error) {
	_ = c.Error(err)

	resp := gin.H{
		"error":      err.Error(),
		"request_id": requestID(c),
	}
	var verrs *config.ValidationErrors
	if errors.As(err, &verrs) {
		resp["fields"] = verrs.Fields()
	}
	c.AbortWithStatusJSON(status, resp)
}
