package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ThomaseR24/signature-pad-canvas/model"
	"github.com/ThomaseR24/signature-pad-canvas/pkg/logger"
	"github.com/ThomaseR24/signature-pad-canvas/service"
	"github.com/gin-gonic/gin"
)

const pdfContentType = "application/pdf"

type ContractHandler struct {
	contracts *service.ContractService
	recorder  *service.Recorder
	verifier  *service.Verifier
	hasher    *service.Hasher
	maxUpload int64
}

func NewContractHandler(contracts *service.ContractService, recorder *service.Recorder, verifier *service.Verifier, hasher *service.Hasher, maxUploadMB int) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
		recorder:  recorder,
		verifier:  verifier,
		hasher:    hasher,
		maxUpload: int64(maxUploadMB) << 20,
	}
}

// contractMeta is the "contract" form field of an upload
type contractMeta struct {
	Title      string         `json:"title"`
	ValidFrom  time.Time      `json:"valid_from"`
	ValidUntil time.Time      `json:"valid_until"`
	Parties    [2]model.Party `json:"parties"`
}

// SignRequest is the body of POST /contracts/:id/signatures
type SignRequest struct {
	Party          string     `json:"party" binding:"required"`
	Name           string     `json:"name" binding:"required"`
	SignatureImage string     `json:"signature_image" binding:"required"`
	Timestamp      *time.Time `json:"timestamp"`
}

type contractResponse struct {
	*model.Contract
	Status      string                 `json:"status"`
	DocumentURL string                 `json:"document_url,omitempty"`
	Integrity   *model.IntegrityReport `json:"integrity,omitempty"`
}

// parseForm parses the multipart body, capped at maxUpload bytes.
func (h *ContractHandler) parseForm(c *gin.Context) bool {
	if h.maxUpload > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUpload)
	}
	err := c.Request.ParseMultipartForm(32 << 20)
	if err == nil {
		return true
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("File exceeds %d MB", h.maxUpload>>20)})
		return false
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid multipart form"})
	return false
}

// errUnreadable marks an upload whose bytes could not be read back.
var errUnreadable = errors.New("Failed to read file")

// openPDF reads the "file" form field and checks that it is a PDF.
func openPDF(c *gin.Context) (io.ReadSeekCloser, string, int64, error) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		return nil, "", 0, errors.New("No file provided")
	}

	if strings.ToLower(filepath.Ext(header.Filename)) != ".pdf" {
		file.Close()
		return nil, "", 0, errors.New("Only PDF files are allowed")
	}

	contentType := header.Header.Get("Content-Type")
	if contentType != "" && contentType != "application/octet-stream" && !strings.Contains(contentType, "pdf") {
		if err := sniffPDF(file); err != nil {
			file.Close()
			return nil, "", 0, err
		}
	}

	return file, header.Filename, header.Size, nil
}

// sniffPDF detects the type from the first 512 bytes and rewinds f.
func sniffPDF(f io.ReadSeeker) error {
	buffer := make([]byte, 512)
	n, err := io.ReadFull(f, buffer)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return fmt.Errorf("%w: %w", errUnreadable, err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("%w: %w", errUnreadable, err)
	}

	detectedType := http.DetectContentType(buffer[:n])
	if !strings.Contains(detectedType, "pdf") && detectedType != "application/octet-stream" {
		return errors.New("Invalid file type")
	}
	return nil
}

// Upload stores a new unsigned NDA
func (h *ContractHandler) Upload(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}

	var meta contractMeta
	if raw := c.PostForm("contract"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &meta); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid contract data: " + err.Error()})
			return
		}
	}

	file, filename, size, err := openPDF(c)
	if errors.Is(err, errUnreadable) {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": errUnreadable.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	defer file.Close()

	contract, err := h.contracts.Create(c.Request.Context(), service.NewContract{
		Title:       meta.Title,
		ValidFrom:   meta.ValidFrom,
		ValidUntil:  meta.ValidUntil,
		Parties:     meta.Parties,
		Filename:    filename,
		ContentType: pdfContentType,
		Size:        size,
	}, file)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": h.view(c, contract, nil)})
}

func (h *ContractHandler) view(c *gin.Context, contract *model.Contract, report *model.IntegrityReport) contractResponse {
	return contractResponse{
		Contract:    contract,
		Status:      contract.Status(time.Now()),
		DocumentURL: h.contracts.DocumentURL(c.Request.Context(), contract),
		Integrity:   report,
	}
}

// List returns all contracts without integrity checks
func (h *ContractHandler) List(c *gin.Context) {
	contracts, err := h.contracts.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	now := time.Now()
	result := make([]gin.H, len(contracts))
	for i, contract := range contracts {
		result[i] = gin.H{
			"contract_id": contract.ID,
			"title":       contract.Title,
			"filename":    contract.Document.Filename,
			"status":      contract.Status(now),
			"parties":     [2]string{contract.Parties[0].Name, contract.Parties[1].Name},
			"created_at":  contract.CreatedAt.Format(time.RFC3339),
			"updated_at":  contract.UpdatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, gin.H{"contracts": result})
}

// Get returns a single contract with its integrity report. When the document
// cannot be fetched the report is left out and integrity_error explains why.
func (h *ContractHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()
	contract, err := h.contracts.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	report, err := h.verifier.Report(ctx, contract)
	if err != nil {
		c.Error(err)
		_, msg := statusFor(err)
		c.JSON(http.StatusOK, gin.H{
			"contract":        h.view(c, contract, nil),
			"integrity_error": msg,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"contract": h.view(c, contract, report)})
}

// Verify recomputes the document fingerprint. ?party= narrows the check to
// one party's signature.
func (h *ContractHandler) Verify(c *gin.Context) {
	ctx := c.Request.Context()
	contract, err := h.contracts.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	if p := c.Query("party"); p != "" {
		idx, err := model.ParseParty(p)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		res, err := h.verifier.VerifyParty(ctx, contract, idx)
		if err != nil {
			respondError(c, err)
			return
		}
		body := verificationBody(contract.ID, res)
		body["fingerprint_scope"] = h.recorder.Scope()
		c.JSON(http.StatusOK, body)
		return
	}

	report, err := h.verifier.Report(ctx, contract)
	if err != nil {
		respondError(c, err)
		return
	}
	body := verificationBody(contract.ID, &report.Document)
	body["parties"] = report.Parties
	body["fingerprint_scope"] = h.recorder.Scope()
	c.JSON(http.StatusOK, body)
}

func verificationBody(id string, v *model.Verification) gin.H {
	body := gin.H{
		"contract_id":         id,
		"state":               v.State,
		"is_valid":            v.IsValid,
		"stored_fingerprint":  v.StoredFingerprint,
		"current_fingerprint": v.CurrentFingerprint,
	}
	switch v.State {
	case model.VerificationMismatch:
		body["warning"] = "The document differs from the version that was signed and may have been altered"
	case model.VerificationNotSigned:
		body["message"] = "No signature recorded yet; nothing to verify"
	}
	return body
}

// Sign records one party's signature
func (h *ContractHandler) Sign(c *gin.Context) {
	var req SignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request: party, name and signature_image are required"})
		return
	}

	idx, err := model.ParseParty(req.Party)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	sr := service.SignRequest{
		ContractID:     c.Param("id"),
		PartyIndex:     idx,
		SignerName:     req.Name,
		SignatureImage: req.SignatureImage,
	}
	if req.Timestamp != nil {
		sr.Timestamp = *req.Timestamp
	}

	contract, err := h.recorder.RecordSignature(c.Request.Context(), sr)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"contract": h.view(c, contract, nil)})
}

// Delete deletes a contract and its document
func (h *ContractHandler) Delete(c *gin.Context) {
	if err := h.contracts.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Contract deleted"})
}

// Document streams the stored PDF
func (h *ContractHandler) Document(c *gin.Context) {
	contract, data, err := h.contracts.OpenDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	contentType := contract.Document.ContentType
	if contentType == "" {
		contentType = pdfContentType
	}
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", contract.Document.Filename))
	c.Data(http.StatusOK, contentType, data)
}

// Hash returns the SHA-256 of an uploaded file without storing it
func (h *ContractHandler) Hash(c *gin.Context) {
	if !h.parseForm(c) {
		return
	}

	file, _, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No file provided"})
		return
	}
	defer file.Close()

	hash, err := service.FingerprintReader(file)
	if err != nil {
		c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash file"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"hash": hash})
}

// ContractHash returns the current document hash and the metadata hash of a
// stored contract.
func (h *ContractHandler) ContractHash(c *gin.Context) {
	ctx := c.Request.Context()
	contract, err := h.contracts.Get(ctx, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}

	documentHash, err := h.hasher.FingerprintBlob(ctx, contract.Document.Handle)
	if err != nil {
		respondError(c, err)
		return
	}
	metadataHash, err := service.MetadataFingerprint(contract)
	if err != nil {
		logger.Error(ctx, "failed to hash contract metadata", "contract_id", contract.ID, "error", err)
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"contract_id":   contract.ID,
		"document_hash": documentHash,
		"metadata_hash": metadataHash,
	})
}
