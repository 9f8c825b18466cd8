package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/geocoder89/leadhub/internal/importer"
	"github.com/gin-gonic/gin"
)

type ImportPreviewResponse struct {
	Filename string         `json:"filename"`
	Columns  []string       `json:"columns"`
	Missing  []string       `json:"missing"`
	RowCount int            `json:"rowCount"`
	Rows     []importer.Row `json:"rows"`
}

// ImportPreview parses the uploaded file and shows what an import would
// insert. Nothing is written.
func (h *LeadsHandler) ImportPreview(ctx *gin.Context) {
	filename, sheet, ok := readUpload(ctx)
	if !ok {
		return
	}

	ctx.JSON(http.StatusOK, ImportPreviewResponse{
		Filename: filename,
		Columns:  sheet.Columns,
		Missing:  sheet.Missing,
		RowCount: len(sheet.Rows),
		Rows:     sheet.Preview(),
	})
}

func (h *LeadsHandler) ImportLeads(ctx *gin.Context) {
	filename, sheet, ok := readUpload(ctx)
	if !ok {
		return
	}

	if err := sheet.Validate(); err != nil {
		RespondError(ctx, http.StatusBadRequest, "missing_columns", err.Error(), gin.H{
			"missing": sheet.Missing,
		})
		return
	}

	cctx, cancel := requestContext(ctx, 2*time.Minute)
	defer cancel()

	inserted, err := importer.Import(cctx, h.repo, sheet)

	h.prom.AddImported(inserted)
	if inserted > 0 {
		h.invalidateOrganizations()
	}

	if err != nil {
		var rowErr *importer.RowError
		if errors.As(err, &rowErr) {
			slog.Default().ErrorContext(cctx, "import aborted",
				"err", rowErr.Err, "file", filename, "line", rowErr.Line, "inserted", inserted)
			RespondError(ctx, http.StatusInternalServerError, "import_aborted",
				"Import stopped at a failing row. Rows before it were saved.", gin.H{
					"inserted": inserted,
					"line":     rowErr.Line,
				})
			return
		}

		slog.Default().ErrorContext(cctx, "import failed", "err", err, "file", filename)
		RespondInternal(ctx, "Could not import file")
		return
	}

	slog.Default().InfoContext(cctx, "leads imported", "file", filename, "inserted", inserted)

	ctx.JSON(http.StatusCreated, gin.H{"inserted": inserted})
}

func readUpload(ctx *gin.Context) (string, importer.Sheet, bool) {
	fh, err := ctx.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			RespondError(ctx, http.StatusRequestEntityTooLarge, "payload_too_large", "Upload is too large", nil)
			return "", importer.Sheet{}, false
		}
		RespondBadRequest(ctx, "A file must be uploaded in the \"file\" field", nil)
		return "", importer.Sheet{}, false
	}

	f, err := fh.Open()
	if err != nil {
		RespondInternal(ctx, "Could not read upload")
		return "", importer.Sheet{}, false
	}
	defer func() { _ = f.Close() }()

	sheet, err := importer.Parse(fh.Filename, f)
	if err != nil {
		switch {
		case errors.Is(err, importer.ErrUnsupportedFormat):
			RespondError(ctx, http.StatusBadRequest, "unsupported_format", err.Error(), nil)
		case errors.Is(err, importer.ErrEmptyFile):
			RespondError(ctx, http.StatusBadRequest, "empty_file", err.Error(), nil)
		default:
			RespondError(ctx, http.StatusBadRequest, "unreadable_file", "Could not parse the uploaded file", gin.H{"reason": err.Error()})
		}
		return "", importer.Sheet{}, false
	}

	return fh.Filename, sheet, true
}
