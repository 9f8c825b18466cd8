package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/geocoder89/leadhub/internal/cache"
	"github.com/geocoder89/leadhub/internal/domain/lead"
	"github.com/geocoder89/leadhub/internal/importer"
	"github.com/geocoder89/leadhub/internal/observability"
	"github.com/gin-gonic/gin"
)

const (
	defaultPerPage = 10
	maxPerPage     = 100
	maxSearchLen   = 200

	noDataMessage = "No data found."
)

type LeadsStore interface {
	Create(ctx context.Context, l lead.Lead) (lead.Lead, error)
	List(ctx context.Context, f lead.ListFilter) ([]lead.Lead, int, error)
	Organizations(ctx context.Context, term string) ([]string, error)
}

type LeadsHandler struct {
	repo  LeadsStore
	cache *cache.Cache
	prom  *observability.Prom
}

func NewLeadsHandler(repo LeadsStore, prom *observability.Prom) *LeadsHandler {
	return &LeadsHandler{repo: repo, prom: prom}
}

// NewLeadsHandlerWithCache caches organization lookups; writes through this
// handler invalidate them.
func NewLeadsHandlerWithCache(repo LeadsStore, c *cache.Cache, prom *observability.Prom) *LeadsHandler {
	return &LeadsHandler{repo: repo, cache: c, prom: prom}
}

type Pagination struct {
	Total      int `json:"total"`
	Page       int `json:"page"`
	PerPage    int `json:"perPage"`
	TotalPages int `json:"totalPages"`
}

type ListLeadsResponse struct {
	Organization string      `json:"organization"`
	Items        []lead.Lead `json:"items"`
	Pagination   Pagination  `json:"pagination"`
}

type DashboardResponse struct {
	Organization string        `json:"organization"`
	Sources      []string      `json:"sources"`
	Empty        bool          `json:"empty"`
	Message      string        `json:"message,omitempty"`
	Items        []lead.Lead   `json:"items"`
	Pagination   Pagination    `json:"pagination"`
	Summary      *lead.Summary `json:"summary,omitempty"`
}

type leadPage struct {
	filter     lead.ListFilter
	items      []lead.Lead
	pagination Pagination
}

func (h *LeadsHandler) ListLeads(ctx *gin.Context) {
	p, ok := h.loadPage(ctx)
	if !ok {
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, ListLeadsResponse{
		Organization: organizationLabel(p.filter),
		Items:        p.items,
		Pagination:   p.pagination,
	})
}

// Dashboard reruns filter, query and summary on every request.
func (h *LeadsHandler) Dashboard(ctx *gin.Context) {
	p, ok := h.loadPage(ctx)
	if !ok {
		return
	}

	resp := DashboardResponse{
		Organization: organizationLabel(p.filter),
		Sources:      p.filter.SourceTypes,
		Items:        p.items,
		Pagination:   p.pagination,
	}

	if len(p.items) == 0 {
		resp.Empty = true
		resp.Message = noDataMessage
	} else {
		summary := lead.Summarize(p.items)
		resp.Summary = &summary
	}

	RespondJSONWithETag(ctx, http.StatusOK, resp)
}

func (h *LeadsHandler) ExportCSV(ctx *gin.Context) {
	p, ok := h.loadPage(ctx)
	if !ok {
		return
	}

	ctx.Header("Content-Type", "text/csv; charset=utf-8")
	ctx.Header("Content-Disposition", `attachment; filename="leads.csv"`)
	ctx.Status(http.StatusOK)

	if err := importer.WriteCSV(ctx.Writer, p.items); err != nil {
		// headers are already out, nothing left but to log
		slog.Default().ErrorContext(ctx.Request.Context(), "csv export failed", "err", err)
	}
}

func (h *LeadsHandler) CreateLead(ctx *gin.Context) {
	var req lead.CreateLeadRequest

	if !BindJSON(ctx, &req) {
		return
	}

	// the leadsource rule already accepted it, store the canonical spelling
	req.SourceType = lead.NormalizeSourceType(req.SourceType)

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	created, err := h.repo.Create(cctx, lead.NewFromCreateRequest(req))
	if err != nil {
		slog.Default().ErrorContext(cctx, "create lead failed", "err", err)
		RespondInternal(ctx, "Could not save lead")
		return
	}

	h.prom.IncCreated()
	h.invalidateOrganizations()

	ctx.JSON(http.StatusCreated, created)
}

func (h *LeadsHandler) ListOrganizations(ctx *gin.Context) {
	term := strings.TrimSpace(ctx.Query("term"))
	if len(term) > maxSearchLen {
		RespondBadRequest(ctx, "term is too long", gin.H{"max": maxSearchLen})
		return
	}

	cctx, cancel := requestContext(ctx, 3*time.Second)
	defer cancel()

	orgs, err := h.organizations(cctx, term)
	if err != nil {
		slog.Default().ErrorContext(cctx, "list organizations failed", "err", err)
		RespondInternal(ctx, "Could not list organizations")
		return
	}

	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": orgs,
		"count": len(orgs),
	})
}

func (h *LeadsHandler) ListSourceTypes(ctx *gin.Context) {
	RespondJSONWithETag(ctx, http.StatusOK, gin.H{
		"items": lead.SourceTypes,
	})
}

// loadPage parses the shared dashboard query and runs it. On false the
// response has already been written.
func (h *LeadsHandler) loadPage(ctx *gin.Context) (leadPage, bool) {
	f, page, perPage, details := parseListQuery(ctx)
	if details != nil {
		RespondBadRequest(ctx, "Invalid query parameters", details)
		return leadPage{}, false
	}

	cctx, cancel := requestContext(ctx, 5*time.Second)
	defer cancel()

	if f.HasOrganization() {
		known, err := h.organizations(cctx, "")
		if err != nil {
			slog.Default().ErrorContext(cctx, "list organizations failed", "err", err)
			RespondInternal(ctx, "Could not load leads")
			return leadPage{}, false
		}
		// a stale selection (e.g. the organization vanished) falls back to all
		if !slices.Contains(known, f.Organization) {
			f.Organization = lead.AllOrganizations
		}
	}

	f.Limit = perPage
	f.Offset = (page - 1) * perPage

	items, total, err := h.repo.List(cctx, f)
	if err != nil {
		slog.Default().ErrorContext(cctx, "list leads failed", "err", err)
		RespondInternal(ctx, "Could not load leads")
		return leadPage{}, false
	}

	if items == nil {
		items = []lead.Lead{}
	}

	return leadPage{
		filter: f,
		items:  items,
		pagination: Pagination{
			Total:      total,
			Page:       page,
			PerPage:    perPage,
			TotalPages: (total + perPage - 1) / perPage,
		},
	}, true
}

func parseListQuery(ctx *gin.Context) (lead.ListFilter, int, int, gin.H) {
	f := lead.ListFilter{
		Organization: strings.TrimSpace(ctx.DefaultQuery("organization", lead.AllOrganizations)),
		Search:       strings.TrimSpace(ctx.Query("q")),
		Sort:         ctx.Query("sort"),
		SourceTypes:  make([]string, 0),
	}

	for _, s := range ctx.QueryArray("source") {
		if s = strings.TrimSpace(s); s != "" && !slices.Contains(f.SourceTypes, s) {
			f.SourceTypes = append(f.SourceTypes, s)
		}
	}

	fields := make([]FieldError, 0)

	queryError := func(field, rule, param string) FieldError {
		return FieldError{Field: field, Rule: rule, Param: param, Message: validationMessage(rule, param)}
	}

	page, ok := positiveInt(ctx.Query("page"), 1)
	if !ok {
		fields = append(fields, queryError("page", "min", "1"))
	}

	perPage, ok := positiveInt(ctx.Query("perPage"), defaultPerPage)
	if !ok {
		fields = append(fields, queryError("perPage", "min", "1"))
	}
	perPage = min(perPage, maxPerPage)

	if len(f.Search) > maxSearchLen {
		fields = append(fields, queryError("q", "max", strconv.Itoa(maxSearchLen)))
	}

	if len(fields) > 0 {
		return f, 0, 0, gin.H{"fields": fields}
	}

	return f, page, perPage, nil
}

func positiveInt(raw string, def int) (int, bool) {
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

func organizationLabel(f lead.ListFilter) string {
	if f.HasOrganization() {
		return f.Organization
	}
	return lead.AllOrganizations
}

const orgCachePrefix = "orgs:"

func (h *LeadsHandler) organizations(ctx context.Context, term string) ([]string, error) {
	key := orgCachePrefix + lead.SearchKey(term)

	if h.cache != nil {
		if v, ok := h.cache.Get(key); ok {
			if orgs, ok := v.([]string); ok {
				return orgs, nil
			}
		}
	}

	orgs, err := h.repo.Organizations(ctx, term)
	if err != nil {
		return nil, err
	}
	if orgs == nil {
		orgs = []string{}
	}

	if h.cache != nil {
		h.cache.Set(key, orgs)
	}

	return orgs, nil
}

func (h *LeadsHandler) invalidateOrganizations() {
	if h.cache == nil {
		return
	}
	h.cache.DeleteFunc(func(key string, _ any) bool {
		return strings.HasPrefix(key, orgCachePrefix)
	})
}
