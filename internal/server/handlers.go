package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/stopmidnight/taskboard/internal/activity"
	"github.com/stopmidnight/taskboard/internal/board"
	"github.com/stopmidnight/taskboard/internal/task"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1_000_000

type statusRequest struct {
	Filename string `json:"filename"`
	ToStatus string `json:"toStatus"`
	Author   string `json:"author"`
}

type undoRequest struct {
	Filename string `json:"filename"`
	Author   string `json:"author"`
}

type createRequest struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Status string `json:"status"`
	Author string `json:"author"`
}

type saveRequest struct {
	Filename string `json:"filename"`
	Title    string `json:"title"`
	Body     string `json:"body"`
	Author   string `json:"author"`
	IfMatch  string `json:"ifMatch"`
}

type template struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Prefix string `json:"prefix"`
	Status string `json:"status"`
	Body   string `json:"body"`
}

var defaultTemplates = []template{
	{ID: "default", Name: "基本タスク", Prefix: "", Status: task.StatusTodo, Body: "- 概要:\n- 受け入れ基準:\n"},
}

// readJSON decodes the request body into v. An empty body leaves v as is.
func readJSON(c echo.Context, v any) error {
	req := c.Request()
	body := http.MaxBytesReader(c.Response(), req.Body, maxBodyBytes)

	data, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errPayloadTooLarge
		}

		return errInvalidJSON
	}

	if len(data) == 0 {
		return nil
	}

	if err := json.Unmarshal(data, v); err != nil {
		return errInvalidJSON
	}

	return nil
}

func ping(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]bool{"ok": true})
}

func templates(c echo.Context) error {
	return c.JSON(http.StatusOK, defaultTemplates)
}

func (s *Server) recentActivity(c echo.Context) error {
	if s.cfg.Activity == nil {
		return c.JSON(http.StatusOK, []json.RawMessage{})
	}

	limit := activity.DefaultLimit

	if raw := c.QueryParam("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			limit = max(n, 1)
		}
	}

	entries, err := s.cfg.Activity.Recent(limit)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, entries)
}

func (s *Server) getTask(c echo.Context) error {
	filename := c.QueryParam("filename")
	if filename == "" {
		return fail(c, errFilenameRequired)
	}

	t, err := s.cfg.Board.Get(c.Request().Context(), filename)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, t)
}

func (s *Server) saveTask(c echo.Context) error {
	var req saveRequest
	if err := readJSON(c, &req); err != nil {
		return fail(c, err)
	}

	if req.Filename == "" {
		return fail(c, errFilenameRequired)
	}

	etag, err := s.cfg.Board.SaveEdit(c.Request().Context(), board.EditInput{
		Filename: req.Filename,
		Title:    req.Title,
		Body:     req.Body,
		Author:   req.Author,
		IfMatch:  req.IfMatch,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "etag": etag})
}

func (s *Server) createTask(c echo.Context) error {
	var req createRequest
	if err := readJSON(c, &req); err != nil {
		return fail(c, err)
	}

	created, err := s.cfg.Board.CreateTask(c.Request().Context(), board.CreateInput{
		Title:  req.Title,
		Body:   req.Body,
		Status: req.Status,
		Author: req.Author,
	})
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"ok":       true,
		"id":       created.ID,
		"filename": created.Filename,
		"status":   created.Status,
	})
}

func (s *Server) undoTask(c echo.Context) error {
	var req undoRequest
	if err := readJSON(c, &req); err != nil {
		return fail(c, err)
	}

	if req.Filename == "" {
		return fail(c, errFilenameRequired)
	}

	restored, err := s.cfg.Board.Undo(c.Request().Context(), req.Filename, req.Author)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "filename": restored})
}

func (s *Server) changeStatus(c echo.Context) error {
	var req statusRequest
	if err := readJSON(c, &req); err != nil {
		return fail(c, err)
	}

	if req.Filename == "" {
		return fail(c, errFilenameRequired)
	}

	newName, err := s.cfg.Board.Transition(c.Request().Context(), req.Filename, req.ToStatus, req.Author)
	if err != nil {
		return fail(c, err)
	}

	return c.JSON(http.StatusOK, map[string]any{"ok": true, "file": newName})
}
