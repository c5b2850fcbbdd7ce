package handler

import (
	"net/http"

	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/apperr"
)

// statusOf maps an error kind to its HTTP status. A not-found entity that
// was referenced from the request body is the client's mistake, not a
// missing resource.
func statusOf(e *apperr.Error) int {
	switch e.Kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		if e.Field != "" {
			return http.StatusBadRequest
		}
		return http.StatusNotFound
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindConflict:
		return http.StatusMethodNotAllowed
	default:
		return http.StatusInternalServerError
	}
}

// writeError writes err as {"code","message","field"}. Unclassified errors
// are logged and reported without detail.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	e, ok := apperr.As(err)
	if !ok || e.Kind == apperr.KindFatal {
		zctx.From(r.Context()).Error("Request failed", zap.Error(err))
		e = &apperr.Error{Message: "internal server error"}
	}
	status := statusOf(e)
	writeJSON(w, status, func(enc *jx.Encoder) {
		enc.Obj(func(enc *jx.Encoder) {
			enc.Field("code", func(enc *jx.Encoder) { enc.Int(status) })
			enc.Field("message", func(enc *jx.Encoder) { enc.Str(e.Message) })
			if e.Field != "" {
				enc.Field("field", func(enc *jx.Encoder) { enc.Str(e.Field) })
			}
		})
	})
}
