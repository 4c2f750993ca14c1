package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/parser"
)

// handleParse runs one uploaded file through the parser registry.
func (s *Server) handleParse(c *gin.Context) {
	data, header, err := s.readUpload(c, "file")
	if err != nil {
		s.renderError(c, err)
		return
	}

	opts := parser.DefaultOptions()
	opts.EnableChunking = c.PostForm("enableChunking") == "true"
	if v := c.PostForm("chunkSize"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.ChunkSize = n
		}
	}
	if v := c.PostForm("chunkOverlap"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.ChunkOverlap = n
		}
	}
	if v := c.PostForm("extractMetadata"); v != "" {
		opts.ExtractMetadata = v != "false"
	}
	opts.Encoding = c.PostForm("encoding")
	if v := c.PostForm("csvOptions"); v != "" {
		if err := json.Unmarshal([]byte(v), &opts.CSV); err != nil {
			s.renderError(c, errors.Wrap(errors.CodeValidation, "invalid csvOptions", err))
			return
		}
	}

	doc, err := s.registry.Parse(c.Request.Context(), data, header.Filename, header.Header.Get("Content-Type"), opts)
	if err != nil {
		s.renderError(c, err)
		return
	}

	result := gin.H{
		"text":     doc.Content,
		"metadata": doc.Metadata,
	}
	if len(doc.Chunks) > 0 {
		result["chunks"] = doc.Chunks
	}
	if structured, ok := doc.Metadata.Custom["structuredData"]; ok {
		result["structuredData"] = structured
	}
	if len(doc.Metadata.Warnings) > 0 {
		result["warnings"] = doc.Metadata.Warnings
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"fileType": doc.FileType,
		"fileName": doc.FileName,
		"fileSize": doc.Metadata.FileSize,
		"result":   result,
	})
}

// handleSupported lists the registered formats.
func (s *Server) handleSupported(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"formats":          s.registry.Supported(),
		"maxFileSizeBytes": parser.DefaultMaxFileSize,
	})
}

// handleValidate checks whether a file could be parsed without parsing it
// fully. The endpoint never errors; problems come back in the body.
func (s *Server) handleValidate(c *gin.Context) {
	data, header, err := s.readUpload(c, "file")
	if err != nil {
		e := errors.AsError(err)
		c.JSON(http.StatusOK, gin.H{
			"valid": false,
			"error": e.Message,
		})
		return
	}

	det := parser.Detect(data, header.Filename, header.Header.Get("Content-Type"))
	resp := gin.H{
		"valid":    det.Type != "",
		"fileName": header.Filename,
		"fileSize": len(data),
	}
	if det.Type != "" {
		resp["fileType"] = det.Type
	} else {
		resp["error"] = "unsupported file type"
	}
	c.JSON(http.StatusOK, resp)
}

// readUpload pulls one multipart file, rejecting oversized payloads before
// buffering the body.
func (s *Server) readUpload(c *gin.Context, field string) ([]byte, *multipart.FileHeader, error) {
	header, err := c.FormFile(field)
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeBadRequest, "missing file upload", err)
	}
	if header.Size > parser.DefaultMaxFileSize {
		return nil, nil, errors.Newf(errors.CodePayloadTooLarge,
			"file size %d exceeds limit %d", header.Size, parser.DefaultMaxFileSize).
			WithDetail("maxFileSizeBytes", parser.DefaultMaxFileSize)
	}

	f, err := header.Open()
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeInternal, "open upload", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, nil, errors.Wrap(errors.CodeInternal, "read upload", err)
	}
	return data, header, nil
}
