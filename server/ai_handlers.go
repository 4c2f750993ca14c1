package server

import (
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sweetpotato0/raggate/errors"
	"github.com/sweetpotato0/raggate/parser"
	"github.com/sweetpotato0/raggate/processor"
	"github.com/sweetpotato0/raggate/provider"
	"github.com/sweetpotato0/raggate/rag"
)

// handleAIQuery answers a question over files uploaded in the same request.
// Files are parsed, chunked, embedded, and indexed before retrieval runs.
func (s *Server) handleAIQuery(c *gin.Context) {
	started := time.Now()

	form, err := c.MultipartForm()
	if err != nil {
		s.renderError(c, errors.Wrap(errors.CodeBadRequest, "invalid multipart form", err))
		return
	}

	question := c.PostForm("selectedText")
	if question == "" {
		s.renderError(c, errors.New(errors.CodeValidation, "selectedText is required"))
		return
	}

	var settings querySettings
	if raw := c.PostForm("settings"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &settings); err != nil {
			s.renderError(c, errors.Wrap(errors.CodeValidation, "invalid settings JSON", err))
			return
		}
	}
	req := queryRequest{Question: question, Settings: settings}
	if err := s.validateQuery(&req); err != nil {
		s.renderError(c, err)
		return
	}
	model, temperature, maxTokens := s.resolveSettings(settings)

	files, err := readFormFiles(form)
	if err != nil {
		s.renderError(c, err)
		return
	}

	promptCtx, info := s.retrieve(c.Request.Context(), rag.QueryRequest{
		Question:      question,
		Documents:     files,
		InlineContext: c.PostForm("inlineContext"),
	})

	answer, err := s.complete(c.Request.Context(), provider.Request{
		System:      rag.SystemPrompt,
		User:        rag.BuildPrompt(promptCtx, question),
		Model:       model,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		s.renderError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"response":       answer.Text,
		"model":          model,
		"usage":          answer.Usage,
		"processingTime": time.Since(started).Milliseconds(),
		"rag":            info,
	})
}

// readFormFiles buffers the files[] field, enforcing the per-file size limit
// before reading each body.
func readFormFiles(form *multipart.Form) ([]processor.FileInput, error) {
	headers := form.File["files"]
	if len(headers) > processor.MaxFilesPerRequest {
		return nil, errors.Newf(errors.CodeValidation,
			"too many files: %d exceeds limit %d", len(headers), processor.MaxFilesPerRequest)
	}

	files := make([]processor.FileInput, 0, len(headers))
	for _, header := range headers {
		if header.Size > parser.DefaultMaxFileSize {
			return nil, errors.Newf(errors.CodePayloadTooLarge,
				"file %q exceeds limit %d", header.Filename, parser.DefaultMaxFileSize)
		}
		f, err := header.Open()
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "open upload", err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, errors.Wrap(errors.CodeInternal, "read upload", err)
		}
		files = append(files, processor.FileInput{
			Name:     header.Filename,
			MimeType: header.Header.Get("Content-Type"),
			Data:     data,
		})
	}
	return files, nil
}
