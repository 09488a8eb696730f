package truenas

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

type systemInfoResponse struct {
	PhysMem looseInt `json:"physmem"`
}

type poolResponse struct {
	Name     string `json:"name"`
	Status   string `json:"status"`
	Healthy  bool   `json:"healthy"`
	Topology struct {
		Data []struct {
			Stats struct {
				Size      looseInt `json:"size"`
				Allocated looseInt `json:"allocated"`
			} `json:"stats"`
		} `json:"data"`
	} `json:"topology"`
}

func (p poolResponse) name() string {
	if p.Name == "" {
		return "Unknown"
	}
	return p.Name
}

func (p poolResponse) status() string {
	switch {
	case p.Status != "":
		return p.Status
	case p.Healthy:
		return "ONLINE"
	default:
		return "DEGRADED"
	}
}

type reportingRequest struct {
	Graphs []reportingGraph `json:"graphs"`
	Query  reportingQuery   `json:"query"`
}

type reportingGraph struct {
	Name string `json:"name"`
}

type reportingQuery struct {
	Start     int64 `json:"start"`
	End       int64 `json:"end"`
	Aggregate bool  `json:"aggregate"`
}

type reportingResponse struct {
	Name         string `json:"name"`
	Aggregations struct {
		Mean orderedMeans `json:"mean"`
	} `json:"aggregations"`
}

// looseInt accepts an integer encoded as a JSON number or string. Anything
// unparseable decodes as zero.
type looseInt int64

func (v *looseInt) UnmarshalJSON(data []byte) error {
	*v = 0

	var decoded any
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	if err := decoder.Decode(&decoded); err != nil {
		return nil
	}

	switch value := decoded.(type) {
	case json.Number:
		if integer, err := value.Int64(); err == nil {
			*v = looseInt(integer)
		} else if f, err := value.Float64(); err == nil {
			*v = looseInt(f)
		}
	case string:
		if integer, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64); err == nil {
			*v = looseInt(integer)
		}
	}
	return nil
}

type meanValue struct {
	key   string
	value float64
	ok    bool // numeric
}

// orderedMeans keeps the aggregation keys in document order so the first
// series can be used when none of the known names match.
type orderedMeans []meanValue

func (m *orderedMeans) UnmarshalJSON(data []byte) error {
	*m = nil
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return nil
	}

	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()

	token, err := decoder.Token()
	if err != nil {
		return err
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("aggregation means: expected object, got %v", token)
	}

	for decoder.More() {
		keyToken, err := decoder.Token()
		if err != nil {
			return err
		}
		key, _ := keyToken.(string)

		var raw any
		if err := decoder.Decode(&raw); err != nil {
			return err
		}
		entry := meanValue{key: key}
		if number, ok := raw.(json.Number); ok {
			if f, err := number.Float64(); err == nil {
				entry.value, entry.ok = f, true
			}
		}
		*m = append(*m, entry)
	}
	return nil
}

// Get returns the numeric mean stored under key.
func (m orderedMeans) Get(key string) (float64, bool) {
	for _, entry := range m {
		if entry.key == key {
			return entry.value, entry.ok
		}
	}
	return 0, false
}

// First returns the first non-zero numeric mean among keys, or zero.
func (m orderedMeans) First(keys ...string) float64 {
	for _, key := range keys {
		if v, ok := m.Get(key); ok && v != 0 {
			return v
		}
	}
	return 0
}

// FirstValue returns the mean of the first series in document order when
// it is numeric.
func (m orderedMeans) FirstValue() float64 {
	if len(m) == 0 || !m[0].ok {
		return 0
	}
	return m[0].value
}
