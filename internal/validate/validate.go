// Package validate normalizes and checks user input before it reaches
// the repository layer. Drafts arrive as loosely-typed values decoded
// from the app shell, so amounts and timestamps accept both native and
// string forms.
package validate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ivanoskov/pocketledger/internal/model"
)

// ValidationError tags a failure with the input field that caused it so
// the caller can surface an inline message.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func fail(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// TransactionDraft is unvalidated transaction input. Amount may be a
// float64, an int, a json.Number or a numeric string; Timestamp may be a
// time.Time, an RFC 3339 / date string, or nil for "now".
type TransactionDraft struct {
	ID         string
	Type       string
	Amount     any
	CategoryID string
	Timestamp  any
}

// ValidatedTransaction is a draft that passed every check, with the
// amount converted to integer cents.
type ValidatedTransaction struct {
	ID          string
	Type        model.TransactionType
	AmountCents int64
	CategoryID  string
	Timestamp   time.Time
}

// ValidateTransactionDraft checks every field and normalizes the amount
// to integer cents. The sign of the amount is discarded; direction is
// carried by Type alone.
func ValidateTransactionDraft(d TransactionDraft) (*ValidatedTransaction, error) {
	if d.ID != "" {
		if _, err := uuid.Parse(d.ID); err != nil {
			return nil, fail("id", "must be a valid UUID")
		}
	}

	t := model.TransactionType(d.Type)
	if t != model.TypeExpense && t != model.TypeIncome {
		return nil, fail("type", "must be %q or %q", model.TypeExpense, model.TypeIncome)
	}

	cents, err := AmountToCents(d.Amount)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(d.CategoryID) == "" {
		return nil, fail("categoryId", "is required")
	}

	ts, err := coerceTimestamp(d.Timestamp)
	if err != nil {
		return nil, err
	}

	return &ValidatedTransaction{
		ID:          d.ID,
		Type:        t,
		AmountCents: cents,
		CategoryID:  d.CategoryID,
		Timestamp:   ts,
	}, nil
}

// AmountToCents parses an amount value and converts it to integer minor
// currency units. Anything below one cent in absolute value is rejected.
func AmountToCents(v any) (int64, error) {
	var f float64
	switch a := v.(type) {
	case nil:
		return 0, fail("amount", "is required")
	case float64:
		f = a
	case float32:
		f = float64(a)
	case int:
		f = float64(a)
	case int64:
		f = float64(a)
	case json.Number:
		parsed, err := a.Float64()
		if err != nil {
			return 0, fail("amount", "is not a number")
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(NormalizeAmountString(a), 64)
		if err != nil {
			return 0, fail("amount", "is not a number")
		}
		f = parsed
	default:
		return 0, fail("amount", "is not a number")
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fail("amount", "is not a finite number")
	}
	if math.Abs(f) < 0.01 {
		return 0, fail("amount", "must be at least 0.01")
	}
	return int64(math.Round(math.Abs(f) * 100)), nil
}

// NormalizeAmountString strips thousands separators and turns a single
// decimal comma into a period, e.g. "1 234,56" -> "1234.56".
func NormalizeAmountString(s string) string {
	s = strings.ReplaceAll(strings.TrimSpace(s), " ", "")
	if strings.Contains(s, ",") {
		if strings.Contains(s, ".") || strings.Count(s, ",") > 1 {
			// commas are thousands separators
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	}
	return s
}

// FormatCents renders integer cents as a plain two-decimal string.
func FormatCents(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}

func coerceTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case nil:
		return time.Now(), nil
	case time.Time:
		if ts.IsZero() {
			return time.Now(), nil
		}
		return ts, nil
	case string:
		if strings.TrimSpace(ts) == "" {
			return time.Now(), nil
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
			if parsed, err := time.Parse(layout, ts); err == nil {
				return parsed, nil
			}
		}
		return time.Time{}, fail("timestamp", "is not a valid time")
	default:
		return time.Time{}, fail("timestamp", "is not a valid time")
	}
}

// CategoryDraft is unvalidated category input.
type CategoryDraft struct {
	ID          string
	Name        string
	Icon        string
	UserDefined bool
}

// MaxCategoryNameLen bounds category names.
const MaxCategoryNameLen = 40

// ValidatedCategory is a category draft that passed every check.
type ValidatedCategory struct {
	ID          string
	Name        string
	Icon        string
	UserDefined bool
}

// ValidateCategoryDraft mirrors transaction validation for categories.
func ValidateCategoryDraft(d CategoryDraft) (*ValidatedCategory, error) {
	if d.ID != "" {
		if _, err := uuid.Parse(d.ID); err != nil {
			return nil, fail("id", "must be a valid UUID")
		}
	}
	name := strings.TrimSpace(d.Name)
	if name == "" {
		return nil, fail("name", "is required")
	}
	if len([]rune(name)) > MaxCategoryNameLen {
		return nil, fail("name", "must be at most %d characters", MaxCategoryNameLen)
	}
	if strings.TrimSpace(d.Icon) == "" {
		return nil, fail("icon", "is required")
	}
	return &ValidatedCategory{
		ID:          d.ID,
		Name:        name,
		Icon:        d.Icon,
		UserDefined: d.UserDefined,
	}, nil
}
