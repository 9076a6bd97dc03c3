package shared

import (
	"encoding/json"
	"errors"

	"github.com/kaptinlin/jsonrepair"
)

// UnmarshalJSON unmarshals data into v. Model output is often almost-JSON, so
// on a syntax error the input is repaired with jsonrepair and decoded again.
func UnmarshalJSON(data []byte, v any) error {
	err := json.Unmarshal(data, v)
	if err == nil {
		return nil
	}
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return err
	}
	fixed, repairErr := jsonrepair.JSONRepair(string(data))
	if repairErr != nil {
		return err
	}
	return json.Unmarshal([]byte(fixed), v)
}
