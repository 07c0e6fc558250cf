// Package api exposes the invoice builder over JSON.
package api

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/odyssey-erp/odyssey-invoice/internal/backend"
	"github.com/odyssey-erp/odyssey-invoice/internal/drafts"
	"github.com/odyssey-erp/odyssey-invoice/internal/invoice"
	"github.com/odyssey-erp/odyssey-invoice/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-invoice/internal/store"
)

var errReceiptsDisabled = errors.New("api: receipts not available for this data source")

// Handler serves the invoice builder endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers invoice routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/catalog/products", h.listProducts)
	r.Get("/catalog/products/{key}/units", h.listUnits)
	r.Get("/parties", h.listParties)
	r.Get("/categories", h.listCategories)
	r.Get("/invoices/{id}/receipt", h.showReceipt)

	r.Route("/drafts", func(r chi.Router) {
		r.Post("/", h.createDraft)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.showDraft)
			r.Delete("/", h.deleteDraft)
			r.Get("/options", h.showOptions)
			r.Post("/reload", h.reloadDraft)
			r.Put("/party", h.setParty)
			r.Post("/lines", h.addLine)
			r.Patch("/lines/{line}", h.updateLine)
			r.Delete("/lines/{line}", h.removeLine)
			r.Put("/payment", h.setPayment)
			r.Post("/validate", h.validateDraft)
			r.Post("/submit", h.submitDraft)
		})
	})
}

func (h *Handler) listProducts(w http.ResponseWriter, r *http.Request) {
	cat, err := h.service.Catalog(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cat.ProductOptions())
}

func (h *Handler) listUnits(w http.ResponseWriter, r *http.Request) {
	cat, err := h.service.Catalog(r.Context())
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	key := chi.URLParam(r, "key")
	if _, ok := cat.Entry(key); !ok {
		httpx.RespondError(w, httpx.ErrNotFound)
		return
	}
	units := cat.UnitOptions(key)
	out := make([]unitView, 0, len(units))
	for _, u := range units {
		v := unitView{UnitOption: u, Stock: cat.StockFor(key, u.Unit)}
		if price, ok := cat.PriceFor(key, u.Unit); ok {
			v.Price = &price
		}
		out = append(out, v)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) listParties(w http.ResponseWriter, r *http.Request) {
	kind := invoice.Kind(r.URL.Query().Get("kind"))
	if kind == "" {
		kind = invoice.KindSales
	}
	if !kind.Valid() {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "kind must be sales or purchase")
		return
	}
	parties, err := h.service.cfg.Sources.Parties.Parties(r.Context(), kind)
	if err != nil {
		h.respondError(w, r, errors.Join(ErrUpstream, err))
		return
	}
	httpx.JSON(w, http.StatusOK, parties)
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.cfg.Sources.Categories.Categories(r.Context())
	if err != nil {
		h.respondError(w, r, errors.Join(ErrUpstream, err))
		return
	}
	httpx.JSON(w, http.StatusOK, categories)
}

func (h *Handler) showReceipt(w http.ResponseWriter, r *http.Request) {
	html, err := h.service.Receipt(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(html))
}

func (h *Handler) createDraft(w http.ResponseWriter, r *http.Request) {
	var req createDraftRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.service.Create(r.Context(), invoice.Kind(req.Kind))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, newDraftView(sess))
}

func (h *Handler) showDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDraftView(sess))
}

func (h *Handler) deleteDraft(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) showOptions(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, optionsView{
		Parties:    sess.Parties(),
		Products:   sess.Catalog().ProductOptions(),
		Categories: sess.Categories(),
	})
}

func (h *Handler) reloadDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Reload(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDraftView(sess))
}

func (h *Handler) setParty(w http.ResponseWriter, r *http.Request) {
	var req partyRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.edit(w, r, func(s *invoice.Session) error { return s.SelectParty(req.PartyID) })
}

func (h *Handler) addLine(w http.ResponseWriter, r *http.Request) {
	h.edit(w, r, func(s *invoice.Session) error {
		_, err := s.AddLine()
		return err
	})
}

func (h *Handler) removeLine(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	h.edit(w, r, func(s *invoice.Session) error {
		_, err := s.RemoveLine(idx)
		return err
	})
}

func (h *Handler) updateLine(w http.ResponseWriter, r *http.Request) {
	idx, ok := h.lineIndex(w, r)
	if !ok {
		return
	}
	var req lineRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.edit(w, r, func(s *invoice.Session) error {
		if req.ProductKey != nil {
			if err := s.SelectProduct(idx, *req.ProductKey); err != nil {
				return err
			}
		}
		if req.Unit != nil {
			if err := s.SelectUnit(idx, *req.Unit); err != nil {
				return err
			}
		}
		if req.Quantity != nil {
			if err := s.SetQuantity(idx, *req.Quantity); err != nil {
				return err
			}
		}
		if req.Price != nil {
			if err := s.SetPrice(idx, *req.Price); err != nil {
				return err
			}
		}
		if req.CategoryID != nil {
			return s.SelectCategory(idx, *req.CategoryID)
		}
		return nil
	})
}

func (h *Handler) setPayment(w http.ResponseWriter, r *http.Request) {
	var req paymentRequest
	if !h.decode(w, r, &req) {
		return
	}
	h.edit(w, r, func(s *invoice.Session) error {
		return s.SetPayment(req.Discount, req.Paid, req.Note)
	})
}

func (h *Handler) validateDraft(w http.ResponseWriter, r *http.Request) {
	sess, err := h.service.Session(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	if err := invoice.Validate(sess.Draft(), sess.Catalog()); err != nil {
		h.respondError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) submitDraft(w http.ResponseWriter, r *http.Request) {
	result, err := h.service.Submit(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, result)
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request, fn func(*invoice.Session) error) {
	sess, err := h.service.Edit(r.Context(), chi.URLParam(r, "id"), fn)
	if err != nil {
		h.respondError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, newDraftView(sess))
}

func (h *Handler) lineIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	idx, err := strconv.Atoi(chi.URLParam(r, "line"))
	if err != nil || idx < 0 {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "line must be a non-negative index")
		return 0, false
	}
	return idx, true
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(r, dst); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", fe.Field()+" failed "+fe.Tag())
			return false
		}
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return false
	}
	return true
}

func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *invoice.ValidationError
	var terr *invoice.TransportError
	var apiErr *backend.APIError
	switch {
	case errors.As(err, &verr):
		p := httpx.ProblemDetail{
			Title:  "Invalid Invoice",
			Status: http.StatusUnprocessableEntity,
			Detail: verr.Error(),
			Code:   string(verr.Code),
			Type:   "urn:odyssey:invoice:" + string(verr.Class()),
		}
		if verr.Line >= 0 {
			line := verr.Line
			p.Line = &line
		}
		if verr.Code == invoice.CodeInsufficientStock {
			available := verr.Available
			p.Available = &available
		}
		httpx.WriteProblem(w, p)
	case errors.Is(err, drafts.ErrNotFound), errors.Is(err, store.ErrNotFound):
		httpx.RespondError(w, errors.Join(httpx.ErrNotFound, err))
	case errors.Is(err, invoice.ErrSubmitInFlight):
		httpx.RespondError(w, errors.Join(httpx.ErrConflict, err))
	case errors.Is(err, invoice.ErrLineOutOfRange), errors.Is(err, invoice.ErrUnknownOption):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, backend.ErrUnauthorized):
		httpx.RespondError(w, errors.Join(httpx.ErrUnauthorized, err))
	case errors.As(err, &terr), errors.Is(err, ErrUpstream):
		detail := err.Error()
		if errors.As(err, &apiErr) {
			detail = apiErr.Message
		}
		h.logger.Warn("upstream failure", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.Problem(w, http.StatusBadGateway, "Upstream Error", detail)
	case errors.Is(err, errReceiptsDisabled):
		httpx.Problem(w, http.StatusNotImplemented, "Not Implemented", err.Error())
	default:
		h.logger.Error("invoice api", slog.String("path", r.URL.Path), slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
