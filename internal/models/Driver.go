package models

import (
	"bytes"
	"encoding/json"
)

// Driver is an entry of the available-drivers list.
type Driver struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
}

// Ref is a reference to a driver or bus on a trip. The fleet API sends it
// either as a bare id or as the populated document.
type Ref struct {
	ID        string `json:"_id"`
	Name      string `json:"name,omitempty"`
	BusNumber string `json:"busNumber,omitempty"`
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*r = Ref{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*r = Ref{ID: id}
		return nil
	}

	type alias Ref
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*r = Ref(a)
	return nil
}
