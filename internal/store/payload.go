package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rcliao/milestone-tracker/internal/model"
)

// ValidatePayload checks that payload has the shape rec is read back with.
// Milestone ids are not checked against a catalog; unknown ids are dropped
// when the profile is opened.
func ValidatePayload(rec Record, payload []byte) error {
	var err error
	switch rec {
	case RecordResponses:
		var answers map[string]*bool
		err = strictDecode(payload, &answers)
		if err == nil && answers == nil {
			err = fmt.Errorf("expected an object")
		}
	case RecordLanguage:
		var lang string
		if err = strictDecode(payload, &lang); err == nil && !model.ValidLanguages[lang] {
			err = fmt.Errorf("unsupported language %q", lang)
		}
	case RecordEvidence:
		var refs map[string]*struct {
			Reference  string    `json:"reference"`
			CapturedAt time.Time `json:"captured_at"`
		}
		err = strictDecode(payload, &refs)
		if err == nil && refs == nil {
			err = fmt.Errorf("expected an object")
		}
		for id, ref := range refs {
			if err != nil {
				break
			}
			if ref == nil || ref.Reference == "" {
				err = fmt.Errorf("%s: empty reference", id)
			}
		}
	case RecordChild:
		var child struct {
			AgeMonths *int   `json:"age_months"`
			Name      string `json:"child_name"`
		}
		err = strictDecode(payload, &child)
		if err == nil && (child.AgeMonths == nil || *child.AgeMonths < 0) {
			err = fmt.Errorf("age_months must be a non-negative integer")
		}
	default:
		err = fmt.Errorf("unknown record")
	}
	if err != nil {
		return model.NewError(model.KindInvalidInput, err, "%s payload", rec)
	}
	return nil
}

func strictDecode(payload []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("trailing data")
	}
	return nil
}
