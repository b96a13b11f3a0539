package httpapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"wyckoff/internal/campaign"
)

// patternSchema gates detector payloads before any field extraction. Detectors
// are external collaborators; a payload that fails here is rejected with the
// validator's message instead of surfacing as a zero-value event downstream.
const patternSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "type": "object",
  "required": ["symbol", "type", "range", "price", "confidence"],
  "properties": {
    "id": {"type": "string"},
    "symbol": {"type": "string", "minLength": 1},
    "timeframe": {"type": "string"},
    "type": {"type": "string"},
    "range": {
      "type": "object",
      "required": ["low", "high"],
      "properties": {
        "low": {"type": ["number", "string"]},
        "high": {"type": ["number", "string"]}
      }
    },
    "price": {"type": ["number", "string"]},
    "volume": {
      "type": "object",
      "properties": {
        "level": {"type": "string", "enum": ["LOW", "NORMAL", "HIGH"]},
        "ratio": {"type": ["number", "string"]}
      }
    },
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "risk_pct": {"type": ["number", "string"]},
    "detected_at": {"type": "string"}
  }
}`

var compiledPatternSchema = jsonschema.MustCompileString("pattern.json", patternSchema)

// ParsePatternEvent validates one detector payload against the schema and
// coerces it into a PatternEvent. Numeric fields arrive as JSON numbers or
// strings depending on the detector; both are accepted.
func ParsePatternEvent(data []byte) (campaign.PatternEvent, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return campaign.PatternEvent{}, fmt.Errorf("invalid JSON: %w", err)
	}
	if err := compiledPatternSchema.Validate(doc); err != nil {
		return campaign.PatternEvent{}, fmt.Errorf("pattern payload rejected: %w", err)
	}

	root := gjson.ParseBytes(data)
	evt := campaign.PatternEvent{
		ID:         root.Get("id").String(),
		Symbol:     root.Get("symbol").String(),
		Timeframe:  root.Get("timeframe").String(),
		Type:       campaign.PatternType(root.Get("type").String()),
		Confidence: root.Get("confidence").Float(),
	}

	var err error
	if evt.Range.Low, err = coerceDecimal(root.Get("range.low")); err != nil {
		return campaign.PatternEvent{}, fmt.Errorf("range.low: %w", err)
	}
	if evt.Range.High, err = coerceDecimal(root.Get("range.high")); err != nil {
		return campaign.PatternEvent{}, fmt.Errorf("range.high: %w", err)
	}
	if evt.Price, err = coerceDecimal(root.Get("price")); err != nil {
		return campaign.PatternEvent{}, fmt.Errorf("price: %w", err)
	}
	if v := root.Get("risk_pct"); v.Exists() {
		if evt.RiskPct, err = coerceDecimal(v); err != nil {
			return campaign.PatternEvent{}, fmt.Errorf("risk_pct: %w", err)
		}
	}

	if vol := root.Get("volume"); vol.Exists() {
		evt.Volume.Level = campaign.VolumeLevel(vol.Get("level").String())
		if r := vol.Get("ratio"); r.Exists() {
			if evt.Volume.Ratio, err = coerceDecimal(r); err != nil {
				return campaign.PatternEvent{}, fmt.Errorf("volume.ratio: %w", err)
			}
		}
	}
	if evt.Volume.Level == "" {
		evt.Volume.Level = campaign.VolumeNormal
	}

	if ts := root.Get("detected_at").String(); ts != "" {
		at, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return campaign.PatternEvent{}, fmt.Errorf("detected_at: %w", err)
		}
		evt.DetectedAt = at
	} else {
		evt.DetectedAt = time.Now().UTC()
	}

	return evt, nil
}

// ParsePatternBatch accepts either a single detector object or a JSON array
// of them.
func ParsePatternBatch(data []byte) ([]campaign.PatternEvent, error) {
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		evt, err := ParsePatternEvent(data)
		if err != nil {
			return nil, err
		}
		return []campaign.PatternEvent{evt}, nil
	}

	items := root.Array()
	events := make([]campaign.PatternEvent, 0, len(items))
	for i, item := range items {
		evt, err := ParsePatternEvent([]byte(item.Raw))
		if err != nil {
			return nil, fmt.Errorf("pattern[%d]: %w", i, err)
		}
		events = append(events, evt)
	}
	return events, nil
}

func coerceDecimal(v gjson.Result) (decimal.Decimal, error) {
	if !v.Exists() {
		return decimal.Zero, fmt.Errorf("missing value")
	}
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("not a decimal: %q", v.String())
	}
	return d, nil
}
