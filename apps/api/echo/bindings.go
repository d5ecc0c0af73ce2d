package echoapi

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/enrollment"
)

var (
	orderingParam = "ordering"
	uploadField   = "file"

	errMissingFile = echo.NewHTTPError(http.StatusBadRequest, "a file is required")
)

type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind parses `?ordering=field1,-field2`: a leading "-" sorts in descending order.
func (ord *Ordering) Bind(ctx echo.Context) {
	val := strings.TrimSpace(ctx.QueryParam(orderingParam))
	if val == "" {
		return
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// bindUpload reads the multipart file sent as `field`; closeFile must be called once the upload is consumed.
func bindUpload(ctx echo.Context, field string) (up enrollment.Upload, closeFile func(), err error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Cause(err) == http.ErrMissingFile {
			return up, nil, errMissingFile
		}
		if errors.Is(err, echo.ErrStatusRequestEntityTooLarge) {
			return up, nil, err
		}
		return up, nil, echo.NewHTTPError(http.StatusBadRequest, "invalid multipart form").SetInternal(err)
	}
	f, err := fh.Open()
	if err != nil {
		return up, nil, errors.Wrap(err, "opening uploaded file")
	}

	contentType := fh.Header.Get(echo.HeaderContentType)
	if contentType == "" {
		contentType = echo.MIMEOctetStream
	}
	up = enrollment.Upload{
		Name:        fh.Filename,
		ContentType: contentType,
		Size:        fh.Size,
		Content:     f,
	}
	return up, func() { _ = f.Close() }, nil
}

// uploadBodyLimit leaves room for the multipart envelope, and for a document a bit over the max size.
func uploadBodyLimit(maxFileSize int64) string {
	return fmt.Sprintf("%dK", (2*maxFileSize+(1<<20))/1024)
}
