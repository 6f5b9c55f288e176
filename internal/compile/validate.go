package compile

import (
	"fmt"

	"github.com/sells-group/dex-cli/internal/model"
)

// ValidationError reports a record missing a field required for export.
type ValidationError struct {
	DexNo int
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("record %d: missing %s", e.DexNo, e.Field)
}

// Validate checks that rec carries every field a merged group needs.
func Validate(dexNo int, rec *model.Pokemon, found bool) error {
	switch {
	case !found:
		return &ValidationError{DexNo: dexNo, Field: "record"}
	case rec.DexNo != dexNo || dexNo <= 0:
		return &ValidationError{DexNo: dexNo, Field: "dex_no"}
	case rec.Name == "":
		return &ValidationError{DexNo: dexNo, Field: "name"}
	case rec.GenNo == nil:
		return &ValidationError{DexNo: dexNo, Field: "gen_no"}
	case rec.Color == nil:
		return &ValidationError{DexNo: dexNo, Field: "color"}
	case len(rec.Typing) == 0:
		return &ValidationError{DexNo: dexNo, Field: "typing"}
	case rec.Matchups == nil:
		return &ValidationError{DexNo: dexNo, Field: "matchups"}
	case len(rec.Stats) == 0:
		return &ValidationError{DexNo: dexNo, Field: "stats"}
	}
	return nil
}
