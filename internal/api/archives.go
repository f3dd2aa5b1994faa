package api

import (
	"io"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"reflow/internal/export"
	"reflow/internal/logging"
)

func (s *Server) handleExportArchive(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	sess, err := s.registry.Get(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	path, err := s.codec.Export(id)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	defer func() {
		if err := os.Remove(path); err != nil {
			s.logger.Warn("archive temp file not removed",
				logging.String("path", path),
				logging.Error(err))
		}
	}()

	c.FileAttachment(path, export.FilenameHint(sess.Name)+".reflow-session")
}

func (s *Server) handleImportArchive(c *gin.Context) {
	data, err := readArchivePayload(c)
	if err != nil {
		respondMessage(c, http.StatusBadRequest, "unable to read archive payload")
		return
	}
	if len(data) == 0 {
		respondMessage(c, http.StatusBadRequest, "empty archive payload")
		return
	}

	sess, err := s.codec.Import(data)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// readArchivePayload accepts either a multipart "file" field or a raw body.
func readArchivePayload(c *gin.Context) ([]byte, error) {
	if header, err := c.FormFile("file"); err == nil {
		return readUpload(header)
	}
	return io.ReadAll(c.Request.Body)
}
