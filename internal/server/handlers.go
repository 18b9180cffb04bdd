package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/scriptdeck/scriptdeck/internal/argspec"
	"github.com/scriptdeck/scriptdeck/internal/auditlog"
	"github.com/scriptdeck/scriptdeck/internal/browse"
	"github.com/scriptdeck/scriptdeck/internal/compose"
	"github.com/scriptdeck/scriptdeck/internal/config"
	"github.com/scriptdeck/scriptdeck/internal/history"
)

// --- Schema extraction ---

type parseRequest struct {
	ScriptPath string `json:"script_path"`
}

func (s *Server) handleParseScript(c *gin.Context) {
	var req parseRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ScriptPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Script path is required"})
		return
	}

	path := browse.Expand(req.ScriptPath)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Script not found: " + path})
		return
	}
	if !strings.HasSuffix(path, ".py") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File must be a Python script (.py)"})
		return
	}

	params, err := argspec.ExtractFile(path)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if params == nil {
		params = []argspec.Parameter{}
	}
	c.JSON(http.StatusOK, gin.H{"args": params, "script_path": path})
}

// --- Launch ---

type runRequest struct {
	ScriptPath  string          `json:"script_path"`
	Args        json.RawMessage `json:"args"`
	PreCommand  *string         `json:"pre_command"`
	Comment     string          `json:"comment"`
	SessionName string          `json:"session_name"`
	LogDir      string          `json:"log_dir"`
	SaveLogs    bool            `json:"save_logs"`
}

func (s *Server) handleRunCommand(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: " + err.Error()})
		return
	}
	if req.ScriptPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Script path required"})
		return
	}

	args, argsMap, err := decodeOrderedArgs(req.Args)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid args: " + err.Error()})
		return
	}

	// A null pre_command means "use the configured default"; an
	// explicit empty string suppresses it.
	preCommand := s.store.Settings().PreCommand
	if req.PreCommand != nil {
		preCommand = *req.PreCommand
	}
	session := req.SessionName
	if session == "" {
		session = s.cfg.Session
	}

	// Validation happens before any side effect. Scripts without a
	// recognizable parser are launched as-is; an inferred schema with
	// unmet required parameters is a hard stop.
	if missing := missingRequired(req.ScriptPath, argsMap); len(missing) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Missing required arguments: " + strings.Join(missing, ", "),
			"missing": missing,
		})
		return
	}

	command, err := compose.Command(req.ScriptPath, args, preCommand, req.Comment)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Audit and history are diagnostics: failures are logged and the
	// launch proceeds.
	logDir := ""
	if req.SaveLogs {
		logDir = req.LogDir
		if logDir == "" {
			logDir = s.store.DefaultLogDir()
		}
	}
	entry := auditlog.Entry{
		ScriptPath: req.ScriptPath,
		Args:       argsMap,
		PreCommand: preCommand,
		Comment:    req.Comment,
		Session:    session,
		Command:    command,
	}
	if err := auditlog.Write(logDir, entry); err != nil {
		s.logger.Warn("audit log write failed", zap.Error(err))
	}

	if s.history != nil {
		rec := history.Record{
			ScriptPath: req.ScriptPath,
			Args:       argsMap,
			PreCommand: preCommand,
			Comment:    req.Comment,
			Session:    session,
			Command:    command,
		}
		if err := s.history.Append(c.Request.Context(), rec); err != nil {
			s.logger.Warn("history append failed", zap.Error(err))
		}
	}

	outcome := s.launcher.Launch(c.Request.Context(), command, session)
	c.JSON(http.StatusOK, outcome)
}

// --- Validation ---

type validateRequest struct {
	ScriptPath string         `json:"script_path"`
	Args       map[string]any `json:"args"`
}

func (s *Server) handleValidate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.ScriptPath == "" {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": "Script path required"})
		return
	}

	params, err := argspec.ExtractFile(browse.Expand(req.ScriptPath))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"valid": false, "error": err.Error()})
		return
	}
	missing := missingFromSchema(params, req.Args)
	if len(missing) > 0 {
		c.JSON(http.StatusOK, gin.H{
			"valid":   false,
			"error":   "Missing required arguments: " + strings.Join(missing, ", "),
			"missing": missing,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"valid": true})
}

// missingRequired extracts the script's schema and returns the
// required parameter names absent from supplied. Extraction failures
// disable validation rather than blocking the launch.
func missingRequired(scriptPath string, supplied map[string]any) []string {
	params, err := argspec.ExtractFile(scriptPath)
	if err != nil {
		return nil
	}
	return missingFromSchema(params, supplied)
}

func missingFromSchema(params []argspec.Parameter, supplied map[string]any) []string {
	var missing []string
	for _, p := range params {
		if !p.Required {
			continue
		}
		key := strings.TrimLeft(p.Name, "-")
		if !hasValue(supplied[key]) {
			missing = append(missing, p.Name)
		}
	}
	return missing
}

func hasValue(v any) bool {
	switch val := v.(type) {
	case nil:
		return false
	case string:
		return val != ""
	case bool:
		return val
	default:
		return true
	}
}

// decodeOrderedArgs walks a JSON object token by token so the order
// the caller supplied survives into composition, which a plain map
// decode would destroy. The parallel map serves validation, audit, and
// history.
func decodeOrderedArgs(raw json.RawMessage) ([]compose.Arg, map[string]any, error) {
	argsMap := map[string]any{}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, argsMap, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("args must be a JSON object")
	}

	var args []compose.Arg
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, nil, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, nil, errors.New("args must be a JSON object")
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return nil, nil, err
		}
		args = append(args, compose.Arg{Name: key, Value: value})
		argsMap[key] = value
	}
	return args, argsMap, nil
}

// --- Settings ---

func (s *Server) handleGetSettings(c *gin.Context) {
	st := s.store.Settings()
	c.JSON(http.StatusOK, gin.H{
		"pre_command":         st.PreCommand,
		"log_dir":             st.LogDir,
		"default_script_path": st.DefaultScriptPath,
		"default_log_dir":     s.store.DefaultLogDir(),
	})
}

func (s *Server) handleUpdateSettings(c *gin.Context) {
	var st config.Settings
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid settings: " + err.Error()})
		return
	}
	if err := s.store.Update(st); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Named configurations ---

func (s *Server) handleListConfigs(c *gin.Context) {
	configs, err := s.store.ListConfigs()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if configs == nil {
		configs = []config.NamedConfig{}
	}
	c.JSON(http.StatusOK, gin.H{"configs": configs})
}

type saveConfigRequest struct {
	Name       string `json:"name"`
	PreCommand string `json:"pre_command"`
	Session    string `json:"byobu_session"`
	LogDir     string `json:"log_dir"`
}

func (s *Server) handleSaveConfig(c *gin.Context) {
	var req saveConfigRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Config name is required"})
		return
	}
	if req.Session == "" {
		req.Session = s.cfg.Session
	}
	saved, err := s.store.SaveConfig(req.Name, config.NamedConfig{
		PreCommand: req.PreCommand,
		Session:    req.Session,
		LogDir:     req.LogDir,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "name": saved})
}

func (s *Server) handleGetConfig(c *gin.Context) {
	cfg, err := s.store.GetConfig(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
		return
	}
	c.JSON(http.StatusOK, cfg)
}

func (s *Server) handleDeleteConfig(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Config name is required"})
		return
	}
	if err := s.store.DeleteConfig(name); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Config not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// --- Argument presets ---

func (s *Server) handleListPresets(c *gin.Context) {
	presets, err := s.store.ListPresets()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	summaries := make([]gin.H, 0, len(presets))
	for _, p := range presets {
		summaries = append(summaries, gin.H{
			"name":        p.Name,
			"script_path": p.ScriptPath,
			"created":     p.Created,
		})
	}
	c.JSON(http.StatusOK, gin.H{"presets": summaries})
}

type savePresetRequest struct {
	Name       string         `json:"name"`
	ScriptPath string         `json:"script_path"`
	Args       map[string]any `json:"args"`
}

func (s *Server) handleSavePreset(c *gin.Context) {
	var req savePresetRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Name) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Preset name is required"})
		return
	}
	saved, err := s.store.SavePreset(config.ArgPreset{
		Name:       req.Name,
		ScriptPath: req.ScriptPath,
		Args:       req.Args,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "name": saved})
}

func (s *Server) handleGetPreset(c *gin.Context) {
	preset, err := s.store.GetPreset(c.Param("name"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Preset not found"})
		return
	}
	c.JSON(http.StatusOK, preset)
}

// --- History ---

func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"history": []history.Record{}})
		return
	}
	records, err := s.history.Recent(c.Request.Context())
	if err != nil {
		s.logger.Warn("history read failed", zap.Error(err))
		c.JSON(http.StatusOK, gin.H{"history": []history.Record{}})
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	c.JSON(http.StatusOK, gin.H{"history": records})
}

// --- File browser ---

func (s *Server) handleBrowse(c *gin.Context) {
	filter := c.DefaultQuery("filter", ".py")
	showHidden := strings.EqualFold(c.Query("show_hidden"), "true")

	listing, err := browse.List(c.Query("path"), filter, showHidden)
	if err != nil {
		status := http.StatusBadRequest
		if os.IsPermission(err) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	if listing.Directories == nil {
		listing.Directories = []browse.Entry{}
	}
	if listing.Files == nil {
		listing.Files = []browse.Entry{}
	}

	if err := s.favorites.Touch(listing.CurrentPath); err != nil {
		s.logger.Debug("recent path update failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, listing)
}

// --- Favorites ---

func (s *Server) handleGetFavorites(c *gin.Context) {
	c.JSON(http.StatusOK, s.favorites.Load())
}

type favoriteRequest struct {
	Path string `json:"path"`
}

func (s *Server) handlePinFavorite(c *gin.Context) {
	var req favoriteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Path) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
		return
	}
	path := browse.Expand(req.Path)
	if _, err := os.Stat(path); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Path does not exist: %s", path)})
		return
	}
	if err := s.favorites.Pin(path); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "path": path})
}

func (s *Server) handleUnpinFavorite(c *gin.Context) {
	path := strings.TrimSpace(c.Query("path"))
	if path == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Path is required"})
		return
	}
	removed, err := s.favorites.Unpin(browse.Expand(path))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if !removed {
		c.JSON(http.StatusNotFound, gin.H{"error": "Path not in favorites"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
