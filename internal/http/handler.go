package http

import (
	"errors"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/nurpe/coldstore/internal/billing"
	"github.com/nurpe/coldstore/internal/http/middleware"
	"github.com/nurpe/coldstore/internal/ledger"
	"github.com/nurpe/coldstore/internal/model"
	"github.com/nurpe/coldstore/internal/service"
)

var (
	cnicPattern  = regexp.MustCompile(`^\d{5}-\d{7}-\d$`)
	phonePattern = regexp.MustCompile(`^03\d{2}-\d{7}$`)
)

type Handler struct {
	storage *service.StorageService
	reports *service.ReportService
	log     zerolog.Logger
}

func NewHandler(storage *service.StorageService, reports *service.ReportService, log zerolog.Logger) *Handler {
	return &Handler{storage: storage, reports: reports, log: log}
}

func (h *Handler) Register(router *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := router.Group("/")
	protected.Use(authMiddleware)

	protected.GET("/rates", h.getRates)
	protected.PUT("/rates", h.updateRates)

	protected.POST("/contracts", h.registerContract)
	protected.GET("/contracts", h.listContracts)
	protected.GET("/contracts/:id", h.getContract)
	protected.PATCH("/contracts/:id", h.updateContract)
	protected.DELETE("/contracts/:id", h.deleteContract)
	protected.GET("/contracts/:id/bill", h.previewBill)
	protected.GET("/contracts/:id/bill.pdf", h.billPDF)
	protected.POST("/contracts/:id/withdrawals", h.withdraw)
	protected.GET("/contracts/:id/withdrawals", h.contractWithdrawals)

	protected.GET("/withdrawals", h.ledger)

	protected.GET("/reports/contracts", h.exportContracts)
	protected.GET("/reports/withdrawals", h.exportWithdrawals)
}

type registerContractRequest struct {
	Class       string `json:"class" binding:"required"`
	FirstName   string `json:"first_name" binding:"required"`
	LastName    string `json:"last_name" binding:"required"`
	CNIC        string `json:"cnic"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	TruckNumber string `json:"truck_number"`
	Quantity    int    `json:"quantity"`
	StartDate   string `json:"start_date" binding:"required"`
}

type updateContractRequest struct {
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	CNIC        *string `json:"cnic"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	TruckNumber *string `json:"truck_number"`
}

type withdrawRequest struct {
	Quantity int  `json:"quantity"`
	IsPaid   bool `json:"is_paid"`
}

type updateRatesRequest struct {
	AppleRate  *decimal.Decimal `json:"apple_rate"`
	PotatoRate *decimal.Decimal `json:"potato_rate"`
}

func (h *Handler) getRates(c *gin.Context) {
	c.JSON(http.StatusOK, toRatesResponse(h.storage.Rates(c.Request.Context())))
}

func (h *Handler) updateRates(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req updateRatesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rates, err := h.storage.UpdateRates(c.Request.Context(), service.UpdateRatesInput{
		AppleRate:  req.AppleRate,
		PotatoRate: req.PotatoRate,
		Principal:  principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toRatesResponse(rates))
}

func (h *Handler) registerContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req registerContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	class, err := parseClass(req.Class)
	if err != nil || class == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class"})
		return
	}
	if msg := validateOwner(&req.CNIC, &req.Phone); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}
	start, err := parseDate(req.StartDate)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start_date"})
		return
	}

	details := model.DetailsFor(class)
	if class == model.ClassApple {
		details = model.AppleDetails{TruckNumber: strings.TrimSpace(req.TruckNumber)}
	}

	contract, err := h.storage.Register(c.Request.Context(), principal, ledger.RegisterInput{
		Owner: model.Owner{
			FirstName: strings.TrimSpace(req.FirstName),
			LastName:  strings.TrimSpace(req.LastName),
			CNIC:      strings.TrimSpace(req.CNIC),
			Phone:     strings.TrimSpace(req.Phone),
			Address:   strings.TrimSpace(req.Address),
		},
		Details:   details,
		Quantity:  req.Quantity,
		StartDate: start,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toContractResponse(contract))
}

func (h *Handler) listContracts(c *gin.Context) {
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return
	}
	class, err := parseClass(c.Query("class"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class"})
		return
	}

	contracts := h.storage.List(c.Request.Context(), service.ListFilter{Status: status, Class: class})
	response := make([]contractResponse, 0, len(contracts))
	for _, contract := range contracts {
		response = append(response, toContractResponse(contract))
	}
	c.JSON(http.StatusOK, gin.H{"data": response})
}

func (h *Handler) getContract(c *gin.Context) {
	contract, err := h.storage.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) updateContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req updateContractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	for name, value := range map[string]*string{"first_name": req.FirstName, "last_name": req.LastName} {
		if value != nil && strings.TrimSpace(*value) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": name + " must not be empty"})
			return
		}
	}
	if msg := validateOwner(req.CNIC, req.Phone); msg != "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	contract, err := h.storage.Update(c.Request.Context(), principal, c.Param("id"), ledger.UpdateInput{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		CNIC:        req.CNIC,
		Phone:       req.Phone,
		Address:     req.Address,
		TruckNumber: req.TruckNumber,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toContractResponse(contract))
}

func (h *Handler) deleteContract(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	if err := h.storage.Delete(c.Request.Context(), principal, c.Param("id")); err != nil {
		h.handleError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) previewBill(c *gin.Context) {
	asOf, err := parseOptionalDate(c.Query("as_of"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
		return
	}

	bill, err := h.storage.PreviewBill(c.Request.Context(), c.Param("id"), asOf)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBillResponse(bill))
}

func (h *Handler) billPDF(c *gin.Context) {
	asOf, err := parseOptionalDate(c.Query("as_of"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid as_of"})
		return
	}

	result, err := h.reports.BillPDF(c.Request.Context(), service.BillInput{
		ContractID: c.Param("id"),
		AsOf:       asOf,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) withdraw(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing principal"})
		return
	}

	var req withdrawRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.storage.Withdraw(c.Request.Context(), service.WithdrawInput{
		ContractID: c.Param("id"),
		Quantity:   req.Quantity,
		IsPaid:     req.IsPaid,
		Principal:  principal,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, withdrawalResultResponse{
		Record:            toWithdrawalResponse(result.Record),
		RemainingQuantity: result.RemainingQuantity,
		BillAmount:        result.BillAmount,
		Completed:         result.Completed,
	})
}

func (h *Handler) contractWithdrawals(c *gin.Context) {
	records, err := h.storage.Withdrawals(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": toWithdrawalResponses(records)})
}

func (h *Handler) ledger(c *gin.Context) {
	class, err := parseClass(c.Query("class"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class"})
		return
	}
	records := h.storage.Ledger(c.Request.Context(), class)
	c.JSON(http.StatusOK, gin.H{"data": toWithdrawalResponses(records)})
}

func (h *Handler) exportContracts(c *gin.Context) {
	input, ok := h.bindExport(c)
	if !ok {
		return
	}
	result, err := h.reports.ExportContracts(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) exportWithdrawals(c *gin.Context) {
	input, ok := h.bindExport(c)
	if !ok {
		return
	}
	result, err := h.reports.ExportWithdrawals(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}
	sendFile(c, result)
}

func (h *Handler) bindExport(c *gin.Context) (service.ExportInput, bool) {
	class, err := parseClass(c.Query("class"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid class"})
		return service.ExportInput{}, false
	}
	status, err := parseStatus(c.Query("status"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid status"})
		return service.ExportInput{}, false
	}
	return service.ExportInput{
		Class:  class,
		Status: status,
		Format: model.ReportFormat(strings.ToLower(strings.TrimSpace(c.Query("format")))),
	}, true
}

func sendFile(c *gin.Context, result *service.ReportResult) {
	c.Header("Content-Type", result.ContentType)
	c.Header("Content-Disposition", "attachment; filename=\""+result.FileName+"\"")
	c.Data(http.StatusOK, result.ContentType, result.Content)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, ledger.ErrValidation),
		errors.Is(err, ledger.ErrInvalidQuantity),
		errors.Is(err, billing.ErrInvalidInput),
		errors.Is(err, billing.ErrInvalidPeriod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrAlreadyCompleted):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// validateOwner checks the identity fields that are present and trims them in place.
func validateOwner(cnic, phone *string) string {
	if cnic != nil {
		*cnic = strings.TrimSpace(*cnic)
		if *cnic != "" && !cnicPattern.MatchString(*cnic) {
			return "cnic must look like 12345-1234567-1"
		}
	}
	if phone != nil {
		*phone = strings.TrimSpace(*phone)
		if *phone != "" && !phonePattern.MatchString(*phone) {
			return "phone must look like 0300-1234567"
		}
	}
	return ""
}

func parseClass(raw string) (model.CommodityClass, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", nil
	}
	class := model.CommodityClass(raw)
	if !class.Valid() {
		return "", service.ErrInvalidInput
	}
	return class, nil
}

func parseStatus(raw string) (model.ContractStatus, error) {
	switch model.ContractStatus(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		return "", nil
	case model.ContractStatusActive:
		return model.ContractStatusActive, nil
	case model.ContractStatusCompleted:
		return model.ContractStatusCompleted, nil
	default:
		return "", service.ErrInvalidInput
	}
}

func parseOptionalDate(raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	return parseDate(raw)
}

func parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, service.ErrInvalidInput
	}
	layouts := []string{
		time.RFC3339,
		"2006-01-02",
		"2006-01-02T15:04:05",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, service.ErrInvalidInput
}
