package cart

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/meridian-shop/backend-pricing/internal/common"
	"github.com/meridian-shop/backend-pricing/internal/discount"
	"github.com/meridian-shop/backend-pricing/internal/money"
	"github.com/meridian-shop/backend-pricing/internal/obs"
	"github.com/meridian-shop/backend-pricing/internal/tax"
	"github.com/meridian-shop/backend-pricing/internal/tenant"
)

// Handler exposes the calculation pipeline over HTTP.
type Handler struct {
	Calc     *Calculator
	Validate *validator.Validate
	Metrics  *obs.CalcMetrics
}

// NewHandler constructs a handler with a ready validator.
func NewHandler(calc *Calculator, metrics *obs.CalcMetrics) *Handler {
	return &Handler{
		Calc:     calc,
		Validate: validator.New(validator.WithRequiredStructEnabled()),
		Metrics:  metrics,
	}
}

type itemPayload struct {
	SKU       string `json:"sku" validate:"required"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
}

type calculatePayload struct {
	Items         []itemPayload `json:"items" validate:"dive"`
	DiscountCode  *string       `json:"discountCode"`
	CountryCode   string        `json:"countryCode" validate:"required"`
	TaxesIncluded bool          `json:"taxesIncluded"`
}

type lineJSON struct {
	SKU       string `json:"sku"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	UnitPrice int64  `json:"unitPrice"`
	LineTotal int64  `json:"lineTotal"`
}

type discountJSON struct {
	Code   string `json:"code"`
	Type   string `json:"type"`
	Value  string `json:"value"`
	Amount int64  `json:"amount"`
}

type taxJSON struct {
	Rate     string `json:"rate"`
	Amount   int64  `json:"amount"`
	Included bool   `json:"included"`
}

type cartJSON struct {
	Items                 []lineJSON    `json:"items"`
	Subtotal              int64         `json:"subtotal"`
	Discount              *discountJSON `json:"discount,omitempty"`
	SubtotalAfterDiscount int64         `json:"subtotalAfterDiscount"`
	Tax                   taxJSON       `json:"tax"`
	Total                 int64         `json:"total"`
}

// Calculate handles POST /api/v1/carts/calculate.
func (h *Handler) Calculate(w http.ResponseWriter, r *http.Request) {
	if h.Calc == nil {
		common.JSONError(w, http.StatusInternalServerError, "Internal", "calculator not configured")
		return
	}

	start := time.Now()
	tenantID, _ := tenant.FromContext(r.Context())

	var payload calculatePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.observe(tenantID, "BadRequest", start)
		common.JSONError(w, http.StatusBadRequest, "BadRequest", "invalid payload")
		return
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(payload); err != nil {
			h.observe(tenantID, "BadRequest", start)
			common.JSONError(w, http.StatusBadRequest, "BadRequest", err.Error())
			return
		}
	}

	req, err := h.toRequest(payload)
	if err == nil {
		var res Result
		res, err = h.Calc.Calculate(r.Context(), req)
		if err == nil {
			h.observe(tenantID, "ok", start)
			common.JSON(w, http.StatusOK, map[string]any{
				"success":  true,
				"cart":     toCartJSON(res),
				"currency": res.Currency,
			})
			return
		}
	}

	appErr := classify(err)
	h.observe(tenantID, appErr.Code, start)
	common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message)
}

func (h *Handler) toRequest(payload calculatePayload) (Request, error) {
	items := make([]Item, 0, len(payload.Items))
	for _, it := range payload.Items {
		item, err := NewItem(it.SKU, it.Name, it.Quantity, it.UnitPrice, h.Calc.Currency)
		if err != nil {
			return Request{}, err
		}
		items = append(items, item)
	}
	return Request{
		Items:         items,
		DiscountCode:  payload.DiscountCode,
		CountryCode:   payload.CountryCode,
		TaxesIncluded: payload.TaxesIncluded,
	}, nil
}

func (h *Handler) observe(tenantID, result string, start time.Time) {
	if h.Metrics != nil {
		h.Metrics.Observe(tenantID, result, time.Since(start))
	}
}

// classify maps a calculation error to its wire code and HTTP status. The
// codes are part of the API contract; downstream consumers branch on them.
func classify(err error) *common.AppError {
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	switch {
	case errors.Is(err, ErrEmptyCart):
		return common.NewAppError("EmptyCart", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidQuantity):
		return common.NewAppError("InvalidQuantity", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, ErrInvalidUnitPrice):
		return common.NewAppError("InvalidUnitPrice", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, discount.ErrInvalidCode):
		return common.NewAppError("InvalidDiscountCode", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, tax.ErrUnsupportedCountry):
		return common.NewAppError("UnsupportedCountry", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, money.ErrCurrencyMismatch):
		return common.NewAppError("CurrencyMismatch", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, money.ErrInvalidAmount):
		return common.NewAppError("InvalidAmount", err.Error(), http.StatusBadRequest, err)
	case errors.Is(err, money.ErrInvalidPercent):
		return common.NewAppError("InvalidPercentage", err.Error(), http.StatusBadRequest, err)
	default:
		return common.NewAppError("Internal", "internal error", http.StatusInternalServerError, err)
	}
}

func toCartJSON(res Result) cartJSON {
	lines := make([]lineJSON, 0, len(res.Items))
	for _, line := range res.Items {
		lines = append(lines, lineJSON{
			SKU:       line.SKU,
			Name:      line.Name,
			Quantity:  line.Qty,
			UnitPrice: line.UnitPrice.Amount(),
			LineTotal: line.LineTotal.Amount(),
		})
	}
	out := cartJSON{
		Items:                 lines,
		Subtotal:              res.Subtotal.Amount(),
		SubtotalAfterDiscount: res.SubtotalAfterDiscount.Amount(),
		Tax: taxJSON{
			Rate:     res.Tax.Rate.String(),
			Amount:   res.Tax.Amount.Amount(),
			Included: res.Tax.Included,
		},
		Total: res.Total.Amount(),
	}
	if res.Discount != nil {
		out.Discount = &discountJSON{
			Code:   res.Discount.Code,
			Type:   string(res.Discount.Kind),
			Value:  res.Discount.Value,
			Amount: res.Discount.Amount.Amount(),
		}
	}
	return out
}
