package cmd

import (
	"fmt"
	"io"
	"sync"

	"github.com/JakeFAU/contact-harvester/internal/progress"
)

// printer renders progress events as console lines.
type printer struct {
	mu   sync.Mutex
	w    io.Writer
	flow progress.Flow
}

func newPrinter(w io.Writer, flow progress.Flow) *printer {
	return &printer{w: w, flow: flow}
}

// Emit implements progress.Emitter. Events may arrive from several
// goroutines.
func (p *printer) Emit(evt progress.Event) {
	if evt.Flow == "" {
		evt.Flow = p.flow
	}
	line := formatEvent(evt)
	if line == "" {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.w, line)
}

func formatEvent(evt progress.Event) string {
	switch evt.Kind {
	case progress.KindStatus:
		return evt.Message
	case progress.KindKeywordStart:
		return fmt.Sprintf("[%d/%d] searching %q", evt.Index+1, evt.Total, evt.Keyword)
	case progress.KindSiteVisiting:
		return "  visiting " + evt.Site
	case progress.KindEmailFound:
		return "  + " + evt.Email
	case progress.KindEmailInvalid:
		return fmt.Sprintf("  - %s (%s)", evt.Email, evt.Reason)
	case progress.KindKeywordComplete:
		return fmt.Sprintf("  %q done: %d new emails", evt.Keyword, evt.EmailsFound)
	case progress.KindError:
		if evt.Keyword != "" {
			return fmt.Sprintf("  error on %q: %s", evt.Keyword, evt.Message)
		}
		return "error: " + evt.Message
	case progress.KindComplete:
		if evt.Flow == progress.FlowDispatch {
			suffix := ""
			if evt.Canceled {
				suffix = " (canceled)"
			}
			return fmt.Sprintf("Done: %d sent, %d failed%s", evt.Sent, evt.Failed, suffix)
		}
		return fmt.Sprintf("Done: %d emails collected", evt.TotalEmails)
	case progress.KindSending:
		return fmt.Sprintf("[%d/%d] sending to %s", evt.Index+1, evt.Total, evt.Email)
	case progress.KindSent:
		return "  sent " + evt.Email
	case progress.KindFailed:
		return fmt.Sprintf("  failed %s: %s", evt.Email, evt.Error)
	default:
		return ""
	}
}

var _ progress.Emitter = (*printer)(nil)
