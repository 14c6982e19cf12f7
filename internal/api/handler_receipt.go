package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"luggage-locker-backend/internal/receipt"
)

// GetReceipt handles GET /api/sessions/:ref/receipt.
func (h *Handler) GetReceipt(c *gin.Context) {
	r, err := h.sessions.Receipt(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// GetReceiptPDF handles GET /api/sessions/:ref/receipt.pdf.
func (h *Handler) GetReceiptPDF(c *gin.Context) {
	r, err := h.sessions.Receipt(c.Request.Context(), c.Param("ref"))
	if err != nil {
		writeError(c, err)
		return
	}
	pdf, err := receipt.RenderPDF(r)
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=receipt-"+r.TagNumber+".pdf")
	c.Data(http.StatusOK, "application/pdf", pdf)
}
