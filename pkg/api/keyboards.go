package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/james-see/accordionctl/pkg/keyboard"
	"github.com/james-see/accordionctl/pkg/storage"
)

// Keyboards travel in the same JSON document as .json keyboard files
func keyboardJSON(k *keyboard.Keyboard) (json.RawMessage, error) {
	data, err := storage.Marshal(storage.FormatJSON, k)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(data), nil
}

func keyboardsJSON(ks []*keyboard.Keyboard) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(ks))
	for _, k := range ks {
		raw, err := keyboardJSON(k)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return out, nil
}

func bindKeyboard(c *gin.Context) (*keyboard.Keyboard, error) {
	data, err := c.GetRawData()
	if err != nil {
		return nil, err
	}
	k, err := storage.Unmarshal(storage.FormatJSON, data)
	if err != nil {
		return nil, &storage.FormatError{Path: "request body", Err: err}
	}
	return k, nil
}

type renameRequest struct {
	Name string `json:"name" binding:"required"`
}

// fetchStored godoc
// @Summary Refresh stored keyboards
// @Description Clears the stored list and asks the device to resend it
// @Tags keyboards
// @Success 202
// @Failure 503 {object} map[string]string
// @Router /keyboards/fetch [post]
func (s *Server) fetchStored(c *gin.Context) {
	if err := s.mirror.FetchStored(); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// listStored godoc
// @Summary List stored keyboards
// @Tags keyboards
// @Produce json
// @Success 200 {array} object
// @Router /keyboards/stored [get]
func (s *Server) listStored(c *gin.Context) {
	s.writeKeyboards(c, s.mirror.Stored())
}

// listKnown godoc
// @Summary List every known keyboard
// @Description Stored keyboards followed by the current left and right keyboards
// @Tags keyboards
// @Produce json
// @Success 200 {array} object
// @Router /keyboards/known [get]
func (s *Server) listKnown(c *gin.Context) {
	s.writeKeyboards(c, s.mirror.Known())
}

func (s *Server) writeKeyboards(c *gin.Context, ks []*keyboard.Keyboard) {
	out, err := keyboardsJSON(ks)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// storeKeyboard godoc
// @Summary Store a keyboard on the device
// @Tags keyboards
// @Accept json
// @Param keyboard body object true "Keyboard document"
// @Success 202
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /keyboards/stored [post]
func (s *Server) storeKeyboard(c *gin.Context) {
	k, err := bindKeyboard(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.mirror.Store(k); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// deleteStored godoc
// @Summary Delete a stored keyboard
// @Tags keyboards
// @Param layout path string true "left96 or right81"
// @Param name path string true "Keyboard name"
// @Success 202
// @Failure 400 {object} map[string]string
// @Router /keyboards/stored/{layout}/{name} [delete]
func (s *Server) deleteStored(c *gin.Context) {
	layout, err := keyboard.ParseLayout(c.Param("layout"))
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.mirror.Delete(layout, c.Param("name")); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// renameStored godoc
// @Summary Rename a stored keyboard
// @Tags keyboards
// @Accept json
// @Param layout path string true "left96 or right81"
// @Param name path string true "Keyboard name"
// @Param request body renameRequest true "New name"
// @Success 202
// @Failure 400 {object} map[string]string
// @Router /keyboards/stored/{layout}/{name}/rename [post]
func (s *Server) renameStored(c *gin.Context) {
	layout, err := keyboard.ParseLayout(c.Param("layout"))
	if err != nil {
		s.fail(c, err)
		return
	}
	var req renameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.mirror.Rename(layout, c.Param("name"), req.Name); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

// getCurrent godoc
// @Summary Current keyboard of a side
// @Tags keyboards
// @Produce json
// @Param side path string true "left or right"
// @Success 200 {object} object
// @Failure 404 {object} map[string]string
// @Router /keyboards/current/{side} [get]
func (s *Server) getCurrent(c *gin.Context) {
	side, err := keyboard.ParseSide(c.Param("side"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	k := s.mirror.Current(side)
	if k == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no current " + side.String() + " keyboard"})
		return
	}
	raw, err := keyboardJSON(k)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, raw)
}

// pushCurrent godoc
// @Summary Make a keyboard current on the device
// @Tags keyboards
// @Accept json
// @Param keyboard body object true "Keyboard document"
// @Success 202
// @Failure 400 {object} map[string]string
// @Failure 503 {object} map[string]string
// @Router /keyboards/current [put]
func (s *Server) pushCurrent(c *gin.Context) {
	k, err := bindKeyboard(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	if err := s.mirror.PushCurrent(k); err != nil {
		s.fail(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}
