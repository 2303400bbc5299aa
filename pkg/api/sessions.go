package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/workspace"
)

// openRequest opens a file (path, relative to the keyboard directory), the
// device's current keyboard of a side (side) or a new empty keyboard
// (layout and name)
type openRequest struct {
	Path   string `json:"path"`
	Side   string `json:"side"`
	Layout string `json:"layout"`
	Name   string `json:"name"`
}

type saveRequest struct {
	Path string `json:"path"`
}

// keyRequest describes one key action. Type "none" unsets the key.
type keyRequest struct {
	Type     string `json:"type" binding:"required,oneof=note program control none"`
	Channel  int    `json:"channel"`
	Pitch    int    `json:"pitch"`
	Velocity int    `json:"velocity"`
	Number   int    `json:"number"`
	Value    int    `json:"value"`
}

func (r keyRequest) action() (keyboard.KeyAction, error) {
	switch r.Type {
	case "note":
		return keyboard.NewNote(r.Channel, r.Pitch, r.Velocity)
	case "program":
		return keyboard.NewProgram(r.Channel, r.Number)
	case "control":
		return keyboard.NewControl(r.Channel, r.Number, r.Value)
	}
	return nil, nil
}

type sessionResponse struct {
	ID       string          `json:"id"`
	Path     string          `json:"path,omitempty"`
	Saved    bool            `json:"saved"`
	CanUndo  bool            `json:"can_undo"`
	CanRedo  bool            `json:"can_redo"`
	Keyboard json.RawMessage `json:"keyboard"`
}

func (s *Server) newSessionResponse(sess *workspace.Session) (sessionResponse, error) {
	raw, err := keyboardJSON(sess.Keyboard())
	if err != nil {
		return sessionResponse{}, err
	}
	return sessionResponse{
		ID:       sess.ID,
		Path:     s.relative(sess.Path()),
		Saved:    sess.Saved(),
		CanUndo:  sess.CanUndo(),
		CanRedo:  sess.CanRedo(),
		Keyboard: raw,
	}, nil
}

func (s *Server) writeSession(c *gin.Context, status int, sess *workspace.Session) {
	resp, err := s.newSessionResponse(sess)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(status, resp)
}

// session resolves the :id parameter, writing the failure if there is none
func (s *Server) session(c *gin.Context) (*workspace.Session, bool) {
	sess, err := s.workspace.Get(c.Param("id"))
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	return sess, true
}

// listSessions godoc
// @Summary List editing sessions
// @Tags sessions
// @Produce json
// @Success 200 {array} sessionResponse
// @Router /sessions [get]
func (s *Server) listSessions(c *gin.Context) {
	out := []sessionResponse{}
	for _, sess := range s.workspace.Sessions() {
		resp, err := s.newSessionResponse(sess)
		if err != nil {
			s.fail(c, err)
			return
		}
		out = append(out, resp)
	}
	c.JSON(http.StatusOK, out)
}

// openSession godoc
// @Summary Open an editing session
// @Description Opens a keyboard file, the current keyboard of a side, or a new empty keyboard
// @Tags sessions
// @Accept json
// @Produce json
// @Param request body openRequest true "What to open"
// @Success 201 {object} sessionResponse
// @Failure 400 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /sessions [post]
func (s *Server) openSession(c *gin.Context) {
	var req openRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var (
		sess *workspace.Session
		err  error
	)
	switch {
	case req.Path != "":
		path, perr := s.resolve(req.Path)
		if perr != nil {
			s.fail(c, perr)
			return
		}
		sess, err = s.workspace.Open(path)
	case req.Side != "":
		side, perr := keyboard.ParseSide(req.Side)
		if perr != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": perr.Error()})
			return
		}
		k := s.mirror.Current(side)
		if k == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "no current " + side.String() + " keyboard"})
			return
		}
		sess = s.workspace.OpenKeyboard(k)
	case req.Layout != "":
		layout, perr := keyboard.ParseLayout(req.Layout)
		if perr != nil {
			s.fail(c, perr)
			return
		}
		sess, err = s.workspace.Create(layout, req.Name)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "one of path, side or layout is required"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeSession(c, http.StatusCreated, sess)
}

// getSession godoc
// @Summary Get an editing session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} sessionResponse
// @Failure 404 {object} map[string]string
// @Router /sessions/{id} [get]
func (s *Server) getSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	s.writeSession(c, http.StatusOK, sess)
}

// closeSession godoc
// @Summary Close an editing session
// @Description Unsaved edits are discarded
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 204
// @Failure 404 {object} map[string]string
// @Router /sessions/{id} [delete]
func (s *Server) closeSession(c *gin.Context) {
	if err := s.workspace.Close(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// setKey godoc
// @Summary Assign a key
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "1-based key index"
// @Param request body keyRequest true "Key action"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} map[string]string
// @Router /sessions/{id}/keys/{index} [put]
func (s *Server) setKey(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid key index %q", c.Param("index"))})
		return
	}
	var req keyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	a, err := req.action()
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := sess.SetKey(index, a); err != nil {
		s.fail(c, err)
		return
	}
	s.writeSession(c, http.StatusOK, sess)
}

// renameSession godoc
// @Summary Rename the edited keyboard
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body renameRequest true "New name"
// @Success 200 {object} sessionResponse
// @Router /sessions/{id}/rename [post]
func (s *Server) renameSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := sess.Rename(req.Name); err != nil {
		s.fail(c, err)
		return
	}
	s.writeSession(c, http.StatusOK, sess)
}

// undo godoc
// @Summary Undo the last edit
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} sessionResponse
// @Failure 409 {object} map[string]string
// @Router /sessions/{id}/undo [post]
func (s *Server) undo(c *gin.Context) {
	s.edit(c, (*workspace.Session).Undo)
}

// redo godoc
// @Summary Redo the last undone edit
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} sessionResponse
// @Failure 409 {object} map[string]string
// @Router /sessions/{id}/redo [post]
func (s *Server) redo(c *gin.Context) {
	s.edit(c, (*workspace.Session).Redo)
}

func (s *Server) edit(c *gin.Context, fn func(*workspace.Session) error) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := fn(sess); err != nil {
		s.fail(c, err)
		return
	}
	s.writeSession(c, http.StatusOK, sess)
}

// saveSession godoc
// @Summary Save the edited keyboard
// @Description Saves to the given path below the keyboard directory, or to the session's file when the body is empty
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body saveRequest false "Target file"
// @Success 200 {object} sessionResponse
// @Failure 400 {object} map[string]string
// @Router /sessions/{id}/save [post]
func (s *Server) saveSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	var req saveRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var err error
	if req.Path != "" {
		path, perr := s.resolve(req.Path)
		if perr != nil {
			s.fail(c, perr)
			return
		}
		err = sess.SaveAs(path)
	} else {
		err = sess.Save()
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	s.writeSession(c, http.StatusOK, sess)
}

// pushSession godoc
// @Summary Make the edited keyboard current on the device
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 202
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /sessions/{id}/push [post]
func (s *Server) pushSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.mirror.PushCurrent(sess.Keyboard()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// storeSession godoc
// @Summary Store the edited keyboard on the device
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 202
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /sessions/{id}/store [post]
func (s *Server) storeSession(c *gin.Context) {
	sess, ok := s.session(c)
	if !ok {
		return
	}
	if err := s.mirror.Store(sess.Keyboard()); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
