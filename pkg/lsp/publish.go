package lsp

import (
	"github.com/dipievil/drone-ci-ex-helper/pkg/validation"
	protocol "github.com/tliron/glsp/protocol_3_16"
)

// toProtocolDiagnostics converts diagnostics for publishing. The result is never nil,
// since an empty list is how a client learns that earlier problems are fixed.
// Related information is attached only for clients that advertise support for it.
func toProtocolDiagnostics(uri protocol.DocumentUri, diags []validation.Diagnostic, related bool) []protocol.Diagnostic {
	out := make([]protocol.Diagnostic, 0, len(diags))
	for _, d := range diags {
		severity := protocol.DiagnosticSeverity(d.Severity)
		source := d.Source
		pd := protocol.Diagnostic{
			Range:    toProtocolRange(d.Range),
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		}
		if d.Keyword != "" {
			pd.Code = &protocol.IntegerOrString{Value: d.Keyword}
		}
		if related {
			for _, info := range d.Related {
				pd.RelatedInformation = append(pd.RelatedInformation, protocol.DiagnosticRelatedInformation{
					Location: protocol.Location{URI: uri, Range: toProtocolRange(info.Range)},
					Message:  info.Message,
				})
			}
		}
		out = append(out, pd)
	}
	return out
}
