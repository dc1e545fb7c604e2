package models

// PayloadKind tags which parse path a RawPayload takes.
type PayloadKind int

const (
	PayloadJSON PayloadKind = iota + 1
	PayloadHTML
)

func (k PayloadKind) String() string {
	switch k {
	case PayloadJSON:
		return "json"
	case PayloadHTML:
		return "html"
	default:
		return "unknown"
	}
}

// RawPayload is the body returned by a fetcher. Exactly one of JSON or HTML
// is meaningful, selected by Kind.
type RawPayload struct {
	Kind PayloadKind
	JSON map[string]any
	HTML string
}

// JSONPayload wraps a decoded JSON object.
func JSONPayload(obj map[string]any) RawPayload {
	return RawPayload{Kind: PayloadJSON, JSON: obj}
}

// HTMLPayload wraps a markup document.
func HTMLPayload(doc string) RawPayload {
	return RawPayload{Kind: PayloadHTML, HTML: doc}
}
