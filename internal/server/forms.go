package server

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	feerecorddomain "github.com/smallbiznis/colegio/internal/feerecord/domain"
	liquidationdomain "github.com/smallbiznis/colegio/internal/liquidation/domain"
	"github.com/smallbiznis/colegio/internal/notification"
	"github.com/smallbiznis/colegio/internal/providers/pdf"
	receiptdomain "github.com/smallbiznis/colegio/internal/receipt/domain"
	"github.com/smallbiznis/colegio/pkg/civildate"
)

const paidAtLayout = "02/01/2006 15:04"

func (s *Server) GetReceiptStatus(c *gin.Context) {
	paymentID := strings.TrimSpace(c.Query("payment_id"))
	if paymentID == "" {
		AbortWithError(c, newValidationError("payment_id", "required", "payment_id is required"))
		return
	}

	receipt, err := s.receiptSvc.FindByPaymentID(c.Request.Context(), paymentID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := receiptdomain.StatusResponse{
		Status:        receipt.Status,
		Paid:          receipt.Paid(),
		ReceiptNumber: receipt.ReceiptNumber,
		PaymentMethod: receipt.PaymentMethod,
		PaidAt:        receipt.PaidAt,
	}
	if receipt.Paid() {
		record, err := s.feeRecordSvc.Get(c.Request.Context(), receipt.FeeRecordID.String())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		resp.DownloadURL = notification.DownloadURL(s.cfg.BackendURL, record.UUID)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetPaymentStatus(c *gin.Context) {
	result, err := s.paymentSvc.PollPreference(c.Request.Context(), c.Param("preference_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) CreateFeeRecord(c *gin.Context) {
	var req feerecorddomain.CreateRequest
	if err := bindLooseJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.feeRecordSvc.Create(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) GetFeeRecord(c *gin.Context) {
	resp, err := s.feeRecordSvc.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) DeleteFeeRecord(c *gin.Context) {
	if err := s.feeRecordSvc.Delete(c.Request.Context(), c.Param("id")); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) DownloadReceipt(c *gin.Context) {
	ctx := c.Request.Context()
	feeRecordUUID := strings.TrimSpace(c.Query("derecho_fijo_uuid"))
	if feeRecordUUID == "" {
		AbortWithError(c, newValidationError("derecho_fijo_uuid", "required", "derecho_fijo_uuid is required"))
		return
	}

	record, err := s.feeRecordSvc.Get(ctx, feeRecordUUID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	feeRecordID, err := snowflake.ParseString(record.ID)
	if err != nil {
		AbortWithError(c, feerecorddomain.ErrInvalidID)
		return
	}
	receipt, err := s.receiptSvc.FindByFeeRecordID(ctx, feeRecordID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if !receipt.Paid() {
		AbortWithError(c, receiptdomain.ErrNotPaid)
		return
	}

	doc, err := s.pdf.GenerateReceipt(ctx, receiptDocument(receipt))
	if err != nil {
		AbortWithError(c, fmt.Errorf("render receipt %s: %w", receipt.ReceiptNumber, err))
		return
	}

	filename := fmt.Sprintf("Recibo-%s.pdf", receipt.ReceiptNumber)
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) CreateLiquidation(c *gin.Context) {
	var req liquidationdomain.Request
	if err := bindLooseJSON(c, &req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	ctx := c.Request.Context()
	liq, err := s.liquidationSvc.Calculate(ctx, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if !strings.EqualFold(c.Query("format"), "pdf") {
		c.JSON(http.StatusOK, gin.H{"data": liq})
		return
	}

	doc, err := s.liquidationSvc.RenderPDF(ctx, liq)
	if err != nil {
		AbortWithError(c, fmt.Errorf("render liquidation: %w", err))
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, liq.Filename()))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func receiptDocument(receipt *receiptdomain.Receipt) pdf.ReceiptData {
	data := pdf.ReceiptData{
		ReceiptNumber: receipt.ReceiptNumber,
		Status:        "PAGADO",
		CaseNumber:    receipt.CaseNumber,
		Caption:       receipt.Caption,
		Court:         receipt.Court,
		DueAmount:     receipt.DueAmount.StringFixed(2),
		JusticeFee:    receipt.JusticeFee.StringFixed(2),
		PaymentMethod: receipt.PaymentMethod,
		PaymentID:     receipt.ConfirmationID(),
	}
	if !receipt.FilingDate.IsZero() {
		data.FilingDate = civildate.Display(civildate.FromTime(receipt.FilingDate))
	}
	if !receipt.DueDate.IsZero() {
		data.DueDate = civildate.Display(civildate.FromTime(receipt.DueDate))
	}
	if receipt.PaidAt != nil {
		data.PaidAt = receipt.PaidAt.UTC().Format(paidAtLayout)
	}
	return data
}
