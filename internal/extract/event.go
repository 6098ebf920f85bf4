package extract

import (
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/tangocommunity/crawler/internal/model"
)

const eventSystem = `You extract structured Argentine tango event listings from the text of event websites.

TERMINOLOGY:
- Milonga: social dance event (the most common type)
- Practica: informal practice session, sometimes with guidance
- Festival: multi-day event with workshops, milongas, shows and guest teachers
- Marathon: multi-day social dancing event with few or no workshops
- Workshop / Taller: single teaching session of one to three hours
- Class / Clase: recurring weekly or bi-weekly lessons
- Encuentro: tango gathering, often by invitation

CLASSIFICATION:
- regular social dance -> "milonga"
- multi-day with workshops and milongas -> "festival"
- single teaching session -> "workshop"
- recurring lesson series -> "class"
- informal practice -> "practica"
- marathons are "festival"; encuentros are "milonga"

FIELDS:
- Dates in ISO 8601 (YYYY-MM-DDTHH:mm:ss+HH:MM). Without a time, milongas usually start at 21:00.
- Infer the timezone from the city when unclear.
- Give the venue address as completely as the page allows.
- Recurring events get an RFC 5545 RRULE in recurrence_rule.
- Keep the description in its original language; translate the title to English and keep the original in title_original.
- country_code is ISO 3166-1 alpha-2; currency is ISO 4217.
- confidence is 1.0 when every field is clear and 0.5 when some guessing was needed.

OUTPUT:
- Return ONLY a JSON array with no markdown and no commentary.
- Return [] when the page lists no events.
- Never invent event details.`

// EventDomain extracts tango events.
type EventDomain struct{}

func (EventDomain) Name() string   { return "events" }
func (EventDomain) System() string { return eventSystem }

func (EventDomain) Prompt(text string, src SourceContext) string {
	var b strings.Builder
	b.WriteString("Extract all tango events from the following webpage content.\n\n")
	fmt.Fprintf(&b, "Source URL: %s\n", src.URL)
	if src.Language != "" {
		fmt.Fprintf(&b, "Source Language: %s\n", src.Language)
	}
	b.WriteString("\n---PAGE CONTENT START---\n")
	b.WriteString(text)
	b.WriteString("\n---PAGE CONTENT END---\n\n")
	b.WriteString("Return a JSON array of extracted events. Each event must have at minimum: title, event_type, city, country_code, start_datetime.")
	return b.String()
}

func (EventDomain) Defaults() model.ExtractedEvent {
	return model.ExtractedEvent{Confidence: model.DefaultConfidence}
}

func (EventDomain) Finish(ev *model.ExtractedEvent, _ SourceContext) error {
	if _, err := ev.StartTime(); err != nil {
		return eris.Wrap(err, "start_datetime")
	}
	if _, err := ev.EndTime(); err != nil {
		ev.EndDatetime = nil
	}
	ev.Title = strings.TrimSpace(ev.Title)
	ev.City = strings.TrimSpace(ev.City)
	ev.CountryCode = strings.ToUpper(ev.CountryCode)
	if ev.Currency != nil {
		c := strings.ToUpper(*ev.Currency)
		ev.Currency = &c
	}
	if ev.ImageURLs == nil {
		ev.ImageURLs = []string{}
	}
	return nil
}
