package executor

import (
	"bytes"
	"encoding/json"

	"github.com/shaipe/async-graphql/internal/cachecontrol"
	"github.com/shaipe/async-graphql/internal/gqlerr"
)

// Response is the result of executing one operation (or of one subscription
// event). Data distinguishes three cases: absent entirely (request-fatal
// failure before or during execution), JSON null (a non-null violation
// propagated to the root), or the resolved result tree.
type Response struct {
	// Data is the resolved tree (*value.Map) or nil. Meaningful only when
	// HasData is true.
	Data any
	// HasData reports whether the response carries a data key at all.
	HasData bool
	// Errors holds every field failure recorded during execution, each with
	// the path of the failing field. Omitted from JSON when empty.
	Errors []*gqlerr.Error
	// Extensions carries implementation-defined response metadata.
	Extensions map[string]any
	// CacheControl is the strictest cache hint seen across the response, for
	// transports to map onto protocol caching headers. Nil when no field
	// declared one. Never serialized into the response body.
	CacheControl *cachecontrol.Hint
}

// errorResponse builds a request-fatal response: errors only, no data key.
func errorResponse(errs ...*gqlerr.Error) *Response {
	return &Response{Errors: errs}
}

// MarshalJSON renders the GraphQL response object. The data key is omitted,
// not merely null, when no field could be resolved at all.
func (r *Response) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	wrote := false
	if r.HasData {
		buf.WriteString(`"data":`)
		b, err := json.Marshal(r.Data)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		wrote = true
	}
	if len(r.Errors) > 0 {
		if wrote {
			buf.WriteByte(',')
		}
		buf.WriteString(`"errors":`)
		b, err := json.Marshal(r.Errors)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		wrote = true
	}
	if len(r.Extensions) > 0 {
		if wrote {
			buf.WriteByte(',')
		}
		buf.WriteString(`"extensions":`)
		b, err := json.Marshal(r.Extensions)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
