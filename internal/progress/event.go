package progress

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/contact-harvester/internal/harvest"
)

// Kind names an event on the wire.
type Kind string

// Supported event kinds.
const (
	KindStatus          Kind = "status"
	KindKeywordStart    Kind = "keyword-start"
	KindSiteVisiting    Kind = "site-visiting"
	KindEmailFound      Kind = "email-found"
	KindEmailInvalid    Kind = "email-invalid"
	KindKeywordComplete Kind = "keyword-complete"
	KindError           Kind = "error"
	KindComplete        Kind = "complete"
	KindSending         Kind = "sending"
	KindSent            Kind = "sent"
	KindFailed          Kind = "failed"
)

// Flow distinguishes the pipeline that produced an event.
type Flow string

// Supported flows.
const (
	FlowCollect  Flow = "collect"
	FlowDispatch Flow = "dispatch"
)

// Event is one progress notification. Only the fields relevant to Kind are
// populated; Payload renders exactly those.
type Event struct {
	// RunID identifies the collection or dispatch run (16-byte UUID form).
	RunID [16]byte
	TS    time.Time
	Flow  Flow
	Kind  Kind

	Keyword string
	Site    string
	Email   string
	Reason  string
	Message string
	Phase   string
	Error   string

	// Contact is the company record attached to email-found and sent.
	Contact *harvest.Contact

	Index       int
	Total       int
	EmailsFound int

	// Collection completion.
	TotalEmails int
	Companies   []harvest.Contact

	// Dispatch completion.
	Sent       int
	Failed     int
	SentEmails []string
	Canceled   bool
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.RunID == [16]byte{} {
		return errors.New("run id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindStatus, KindError, KindComplete:
	case KindKeywordStart, KindKeywordComplete:
		if e.Keyword == "" {
			return fmt.Errorf("%s requires keyword", e.Kind)
		}
	case KindSiteVisiting:
		if e.Site == "" {
			return errors.New("site-visiting requires site")
		}
	case KindEmailFound, KindEmailInvalid, KindSending, KindSent, KindFailed:
		if e.Email == "" {
			return fmt.Errorf("%s requires email", e.Kind)
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	return nil
}

// RunUUID converts the binary run ID to uuid.UUID.
func (e Event) RunUUID() uuid.UUID {
	return uuid.UUID(e.RunID)
}

// UUIDToBytes encodes a uuid.UUID into the Event form.
func UUIDToBytes(id uuid.UUID) [16]byte {
	var dest [16]byte
	copy(dest[:], id[:])
	return dest
}

// Terminal reports whether e ends its run.
func (e Event) Terminal() bool {
	return e.Kind == KindComplete || (e.Kind == KindError && e.Keyword == "")
}

// Payload returns the wire body for the event's kind.
func (e Event) Payload() map[string]any {
	switch e.Kind {
	case KindStatus:
		return map[string]any{"message": e.Message, "phase": e.Phase}
	case KindKeywordStart:
		return map[string]any{"keyword": e.Keyword, "index": e.Index, "total": e.Total}
	case KindSiteVisiting:
		return map[string]any{"site": e.Site, "keyword": e.Keyword}
	case KindEmailFound:
		return map[string]any{"email": e.Email, "company": e.Contact}
	case KindEmailInvalid:
		return map[string]any{"email": e.Email, "reason": e.Reason}
	case KindKeywordComplete:
		return map[string]any{"keyword": e.Keyword, "emailsFound": e.EmailsFound}
	case KindError:
		body := map[string]any{"message": e.Message}
		if e.Keyword != "" {
			body["keyword"] = e.Keyword
		}
		return body
	case KindComplete:
		if e.Flow == FlowDispatch {
			sent := e.SentEmails
			if sent == nil {
				sent = []string{}
			}
			body := map[string]any{"sent": e.Sent, "failed": e.Failed, "sentEmails": sent}
			if e.Canceled {
				body["canceled"] = true
			}
			return body
		}
		companies := e.Companies
		if companies == nil {
			companies = []harvest.Contact{}
		}
		return map[string]any{"totalEmails": e.TotalEmails, "companies": companies}
	case KindSending:
		return map[string]any{"email": e.Email, "index": e.Index, "total": e.Total}
	case KindSent:
		return map[string]any{"email": e.Email, "company": e.Contact}
	case KindFailed:
		return map[string]any{"email": e.Email, "error": e.Error}
	default:
		return map[string]any{}
	}
}
