package ivr

import (
	"net/http"
	"strings"

	"ivr-platform/pkg/logger"

	"github.com/gin-gonic/gin"
)

// HTTPHandler exposes the call flow as PBX webhooks. It only translates the
// query string; all decisions live in the Machine.
type HTTPHandler struct {
	machine *Machine
}

func NewHTTPHandler(m *Machine) *HTTPHandler {
	return &HTTPHandler{machine: m}
}

func (h *HTTPHandler) Register(r gin.IRouter) {
	r.GET("/pbx", h.entry)
	r.GET("/pbx/menu/:menu", h.menu)
}

// knownInputs lets the menu webhook recover when the PBX posts the input
// under its field name but hits the route of an older menu.
var knownInputs = []string{
	"newCustomer", "newCustomerID", "renewSubscription", "renewalConfirm",
	"mainMenu", "receiptAmount", "receiptDescription", "cancelReceiptId",
	"numChildren", "spouse1_workplaces", "spouse2_workplaces",
	"customerMessage", "annualReport", "benefitsMenu",
	"invalidAmount", "receiptFailed", "registrationFail",
}

func (h *HTTPHandler) entry(c *gin.Context) {
	log := logger.FromGin(c)

	p := EntryParams{
		CallID:        c.Query("PBXcallId"),
		Phone:         c.Query("PBXphone"),
		Num:           c.Query("PBXnum"),
		DID:           c.Query("PBXdid"),
		CallType:      c.Query("PBXcallType"),
		CallStatus:    c.Query("PBXcallStatus"),
		ExtensionID:   c.Query("PBXextensionId"),
		ExtensionPath: c.Query("PBXextensionPath"),
	}
	if p.CallID == "" || p.Phone == "" {
		log.Warn("entry webhook missing identifiers", "call_id", p.CallID, "phone_present", p.Phone != "")
		c.JSON(http.StatusBadRequest, gin.H{"error": "PBXcallId and PBXphone are required"})
		return
	}

	resp := h.machine.HandleEntry(c.Request.Context(), p)
	log.Info("entry webhook", "call_id", p.CallID, "menu", resp.MenuName())
	c.JSON(http.StatusOK, resp)
}

func (h *HTTPHandler) menu(c *gin.Context) {
	log := logger.FromGin(c)

	callID := c.Query("PBXcallId")
	if callID == "" {
		log.Warn("menu webhook missing call id", "menu", c.Param("menu"))
		c.JSON(http.StatusBadRequest, gin.H{"error": "PBXcallId is required"})
		return
	}

	name := c.Param("menu")
	value := c.Query(name)
	if value == "" {
		name, value = findInput(c)
		if value != "" {
			log.Info("menu webhook recovered input from stale route", "call_id", callID, "route", c.Param("menu"), "input", name)
		}
	}
	if value == "" {
		log.Warn("menu webhook carried no input", "call_id", callID, "menu", c.Param("menu"))
		c.JSON(http.StatusOK, noInputMenu())
		return
	}

	resp := h.machine.HandleInput(c.Request.Context(), callID, name, value)
	log.Info("menu webhook", "call_id", callID, "input", name, "menu", resp.MenuName())
	c.JSON(http.StatusOK, resp)
}

func findInput(c *gin.Context) (string, string) {
	for _, k := range knownInputs {
		if v := c.Query(k); v != "" {
			return k, v
		}
	}
	for k, vs := range c.Request.URL.Query() {
		if strings.HasPrefix(k, "child_birth_year_") && len(vs) > 0 && vs[0] != "" {
			return k, vs[0]
		}
	}
	return "", ""
}
