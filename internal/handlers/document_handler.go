package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/juridico/conciliacao-api/internal/services"
	"github.com/juridico/conciliacao-api/internal/storage"
)

type DocumentHandler struct {
	repasseService *services.RepasseService
}

func NewDocumentHandler(repasseService *services.RepasseService) *DocumentHandler {
	return &DocumentHandler{repasseService: repasseService}
}

// @Summary Upload Document
// @Description Store a repasse declaration, transfer proof or entry attachment and return its URL
// @Tags Documents
// @Accept multipart/form-data
// @Produce json
// @Param kind formData string true "declaracao, comprovante or anexo"
// @Param file formData file true "PDF, JPEG or PNG"
// @Success 201 {object} services.UploadedDocument
// @Failure 422 {object} map[string]string
// @Security BearerAuth
// @Router /documents [post]
func (h *DocumentHandler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxFileSize()+1<<20)

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		invalidInput(c, "arquivo_obrigatorio", "arquivo obrigatório no campo file")
		return
	}
	defer file.Close()

	doc, err := h.repasseService.UploadDocument(
		c.Request.Context(),
		c.PostForm("kind"),
		file,
		header.Size,
		header.Filename,
		header.Header.Get("Content-Type"),
	)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"document": doc})
}
