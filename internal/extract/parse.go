package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/tangocommunity/crawler/internal/model"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Rejection records why one array element was dropped.
type Rejection struct {
	Index  int
	Reason string
}

// ParseRecords decodes a raw model answer into records. The first
// bracket-delimited span is taken as the array so fences and stray prose are
// tolerated. Unparseable or non-array answers yield nothing; each element is
// decoded over the domain defaults, validated, finished, and dropped on its
// own when any step fails.
func ParseRecords[T model.Record](raw string, d Domain[T], src SourceContext) ([]T, []Rejection) {
	log := zap.L().With(zap.String("component", "extract"), zap.String("domain", d.Name()), zap.String("url", src.URL))

	span := arraySpan(raw)

	var decoded any
	if err := json.Unmarshal([]byte(span), &decoded); err != nil {
		log.Warn("extract: response is not valid JSON", zap.Error(err), zap.String("raw", truncate(raw, 500)))
		return nil, nil
	}
	if _, ok := decoded.([]any); !ok {
		log.Warn("extract: response is not a JSON array", zap.String("raw", truncate(raw, 500)))
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(span), &elems); err != nil {
		log.Warn("extract: decode array", zap.Error(err))
		return nil, nil
	}

	records := make([]T, 0, len(elems))
	var rejected []Rejection
	for i, elem := range elems {
		rec, err := decodeRecord(elem, d, src)
		if err != nil {
			rejected = append(rejected, Rejection{Index: i, Reason: err.Error()})
			log.Warn("extract: record rejected", zap.Int("index", i), zap.String("reason", err.Error()))
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}

func decodeRecord[T model.Record](elem json.RawMessage, d Domain[T], src SourceContext) (T, error) {
	rec := d.Defaults()
	if err := json.Unmarshal(elem, &rec); err != nil {
		var zero T
		return zero, eris.Wrap(err, "decode")
	}
	if err := validate.Struct(rec); err != nil {
		var zero T
		return zero, describeValidation(err)
	}
	if err := d.Finish(&rec, src); err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

// arraySpan returns the text from the first '[' to the last ']', or the
// trimmed input when no such span exists.
func arraySpan(raw string) string {
	start := strings.Index(raw, "[")
	end := strings.LastIndex(raw, "]")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return strings.TrimSpace(raw)
}

func describeValidation(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return eris.Errorf("invalid: %s", strings.Join(parts, ", "))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
