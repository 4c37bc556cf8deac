// Package results turns measurement counts into render rows, a text
// bar chart, page markup and a terminal histogram. Everything here is pure
// except Mount, which writes into a page element.
package results

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Count is one state label with the number of shots that measured it.
type Count struct {
	State string
	N     int
}

// Counts keeps the order the service sent the states in. It decodes from
// and encodes to a JSON object.
type Counts []Count

func (c *Counts) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*c = nil
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("counts: expected object, got %v", tok)
	}
	out := Counts{}
	seen := map[string]int{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)
		var num json.Number
		if err := dec.Decode(&num); err != nil {
			return fmt.Errorf("counts[%s]: %w", key, err)
		}
		n, err := ParseCount(num)
		if err != nil {
			return fmt.Errorf("counts[%s]: %w", key, err)
		}
		// A repeated state keeps its first position and its last value.
		if i, ok := seen[key]; ok {
			out[i].N = n
			continue
		}
		seen[key] = len(out)
		out = append(out, Count{State: key, N: n})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = out
	return nil
}

func (c Counts) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, e := range c {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(e.State)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.WriteString(strconv.Itoa(e.N))
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Total sums the counts.
func (c Counts) Total() int {
	total := 0
	for _, e := range c {
		total += e.N
	}
	return total
}

// ParseCount reads a whole number the service may send as 512 or 512.0.
func ParseCount(num json.Number) (int, error) {
	if n, err := num.Int64(); err == nil {
		return int(n), nil
	}
	f, err := num.Float64()
	if err != nil {
		return 0, err
	}
	return int(math.Round(f)), nil
}

// Measurement is a counts histogram plus the number of shots taken. The
// service is trusted; counts may not sum to shots.
type Measurement struct {
	Counts Counts `json:"counts"`
	Shots  int    `json:"shots"`
}

func (m *Measurement) UnmarshalJSON(data []byte) error {
	var raw struct {
		Counts Counts      `json:"counts"`
		Shots  json.Number `json:"shots"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	shots := 0
	if raw.Shots != "" {
		n, err := ParseCount(raw.Shots)
		if err != nil {
			return fmt.Errorf("shots: %w", err)
		}
		shots = n
	}
	*m = Measurement{Counts: raw.Counts, Shots: shots}
	return nil
}

// Empty reports whether there is nothing to render.
func (m Measurement) Empty() bool {
	return len(m.Counts) == 0
}
